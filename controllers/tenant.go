package controllers

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"diagnostics-api/apperrors"
	"diagnostics-api/services"
)

func GetTenants(c *gin.Context) {
	tenants, err := svc.Tenants.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, tenants)
}

func GetTenant(c *gin.Context) {
	tenant, err := svc.Tenants.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, tenant)
}

func CreateTenant(c *gin.Context) {
	var req services.TenantInput
	if !bind(c, &req) {
		return
	}
	tenant, err := svc.Tenants.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, tenant)
}

func UpdateTenant(c *gin.Context) {
	var req services.TenantInput
	if !bind(c, &req) {
		return
	}
	tenant, err := svc.Tenants.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, tenant)
}

func DeleteTenant(c *gin.Context) {
	if err := svc.Tenants.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadTenantAsset replaces the logo or favicon named by the :asset
// segment. The file comes as multipart under "file".
func UploadTenantAsset(asset services.TenantAsset) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxTenantAssetSize+1<<20)

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			fail(c, apperrors.Field("file", "file is required"))
			return
		}
		defer file.Close()

		tenant, err := svc.Tenants.UploadAsset(c.Request.Context(), c.Param("id"), asset, services.TenantAssetUpload{
			FileName: header.Filename,
			Size:     header.Size,
			Body:     file,
		})
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, tenant)
	}
}

// GetTenantAsset serves a tenant logo or favicon without a session so
// e-mail clients and login pages can load it.
func GetTenantAsset(asset services.TenantAsset) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, name, err := svc.Tenants.OpenAsset(c.Request.Context(), c.Param("id"), asset)
		if err != nil {
			fail(c, err)
			return
		}
		defer r.Close()

		contentType := mime.TypeByExtension(filepath.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header("Content-Type", contentType)
		c.Header("Cache-Control", "public, max-age=3600")
		c.Status(http.StatusOK)
		_, _ = io.Copy(c.Writer, r)
	}
}
