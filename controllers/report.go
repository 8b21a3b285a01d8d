package controllers

import (
	"github.com/gin-gonic/gin"

	"diagnostics-api/services"
)

type UpdateSectionRequest struct {
	Section services.ReportSection `json:"section" binding:"required"`
	Content string                 `json:"content"`
}

func GetProjectReports(c *gin.Context) {
	reports, err := svc.Reports.ListByProject(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, reports)
}

func GetReport(c *gin.Context) {
	report, err := svc.Reports.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, report)
}

func GenerateReport(c *gin.Context) {
	var req services.GenerateReportInput
	if !bind(c, &req) {
		return
	}
	report, err := svc.Reports.Generate(c.Request.Context(), actor(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, report)
}

func UpdateReportSection(c *gin.Context) {
	var req UpdateSectionRequest
	if !bind(c, &req) {
		return
	}
	report, err := svc.Reports.UpdateSection(c.Request.Context(), actor(c), c.Param("id"), req.Section, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, report)
}

func PublishReport(c *gin.Context) {
	report, err := svc.Reports.Publish(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, report)
}

func GetReportVersions(c *gin.Context) {
	versions, err := svc.Reports.Versions(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, versions)
}
