package controllers

import (
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"diagnostics-api/apperrors"
	"diagnostics-api/models"
	"diagnostics-api/services"
)

// UploadDocument accepts a multipart form with the file under "file".
func UploadDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxDocumentSize+1<<20)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		fail(c, apperrors.Field("file", "file is required"))
		return
	}
	defer file.Close()

	in := services.UploadDocumentInput{
		ProjectID:       c.PostForm("projectId"),
		ChecklistItemID: c.PostForm("checklistItemId"),
		Name:            c.PostForm("name"),
		Type:            c.PostForm("type"),
		FileName:        header.Filename,
		Size:            header.Size,
		MimeType:        header.Header.Get("Content-Type"),
		Body:            file,
	}
	if desc := c.PostForm("description"); desc != "" {
		in.Description = &desc
	}

	doc, err := svc.Documents.Upload(c.Request.Context(), actor(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, doc)
}

func GetProjectDocuments(c *gin.Context) {
	filter := services.DocumentFilter{
		Type:   c.Query("type"),
		Status: models.DocumentStatus(c.Query("status")),
	}
	docs, err := svc.Documents.List(c.Request.Context(), actor(c), c.Param("id"), filter)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, docs)
}

func GetDocument(c *gin.Context) {
	doc, err := svc.Documents.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, doc)
}

// ValidateDocument approves or rejects a document and its checklist item.
func ValidateDocument(c *gin.Context) {
	var req ReviewRequest
	if !bind(c, &req) {
		return
	}
	doc, err := svc.Documents.Validate(c.Request.Context(), actor(c), c.Param("id"), req.Status, req.Notes)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, doc)
}

func DeleteDocument(c *gin.Context) {
	if err := svc.Documents.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DownloadFile streams a stored object behind a signed link. No session is
// needed: the token is the credential.
func DownloadFile(c *gin.Context) {
	r, name, err := svc.Documents.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		fail(c, err)
		return
	}
	defer r.Close()

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, r)
}
