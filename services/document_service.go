package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"diagnostics-api/apperrors"
	"diagnostics-api/checklist"
	"diagnostics-api/config"
	"diagnostics-api/models"
	"diagnostics-api/monitor"
)

const MaxDocumentSize int64 = 10 * 1024 * 1024 // 10MB

var allowedDocumentExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".csv":  true,
	".ppt":  true,
	".pptx": true,
	".txt":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

type DocumentService struct {
	db            *gorm.DB
	storage       ObjectStorage
	signer        *URLSigner
	checklists    *ChecklistService
	notifications *NotificationService
	events        EventPublisher
	logger        *zap.Logger
	now           func() time.Time
}

type DocumentDeps struct {
	Storage       ObjectStorage
	Signer        *URLSigner
	Checklists    *ChecklistService
	Notifications *NotificationService
	Events        EventPublisher
	Logger        *zap.Logger
}

func NewDocumentService(db *gorm.DB, deps DocumentDeps) *DocumentService {
	if db == nil {
		db = config.DB
	}
	logger := loggerOrDefault(deps.Logger)
	if deps.Notifications == nil {
		deps.Notifications = NewNotificationService(db, logger)
	}
	if deps.Events == nil {
		deps.Events = NopPublisher{}
	}
	if deps.Checklists == nil {
		deps.Checklists = NewChecklistService(db, deps.Notifications, deps.Events, logger)
	}
	return &DocumentService{
		db:            db,
		storage:       deps.Storage,
		signer:        deps.Signer,
		checklists:    deps.Checklists,
		notifications: deps.Notifications,
		events:        deps.Events,
		logger:        logger,
		now:           time.Now,
	}
}

type UploadDocumentInput struct {
	ProjectID       string
	ChecklistItemID string
	Name            string
	Type            string
	Description     *string
	FileName        string
	Size            int64
	MimeType        string
	Body            io.Reader
}

// Upload stores the file, links it to the checklist item of its type and
// marks a PENDING item UPLOADED before reconciling the project. Reviewed
// items keep their status.
func (s *DocumentService) Upload(ctx context.Context, actor Actor, in UploadDocumentInput) (*models.Document, error) {
	if s.storage == nil {
		return nil, errors.New("document storage not configured")
	}
	docType, ok := checklist.ParseDocumentType(in.Type)
	if !ok {
		return nil, apperrors.Field("type", "invalid document type")
	}
	if in.Body == nil || in.FileName == "" {
		return nil, apperrors.Field("file", "file is required")
	}
	if in.Size > MaxDocumentSize {
		return nil, apperrors.Field("file", "file size exceeds 10MB limit")
	}
	ext := strings.ToLower(filepath.Ext(in.FileName))
	if !allowedDocumentExtensions[ext] {
		return nil, apperrors.Field("file", "file type not allowed")
	}

	project, err := findProjectFor(ctx, s.db, actor, in.ProjectID)
	if err != nil {
		return nil, err
	}
	item, err := s.resolveItem(ctx, project.ID, in.ChecklistItemID, docType)
	if err != nil {
		return nil, err
	}

	key := ObjectKey("projects/"+project.ID+"/documents", in.FileName)
	written, err := s.storage.Put(ctx, key, io.LimitReader(in.Body, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}
	if written > MaxDocumentSize {
		logAndContinue(s.logger, "discard oversized upload", s.storage.Delete(persistentContext(ctx), key))
		return nil, apperrors.Field("file", "file size exceeds 10MB limit")
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = in.FileName
	}
	doc := &models.Document{
		ProjectID:      project.ID,
		OrganizationID: project.OrganizationID,
		UploadedByID:   actor.UserID,
		Name:           name,
		FileName:       filepath.Base(in.FileName),
		StoragePath:    key,
		FileSize:       written,
		MimeType:       in.MimeType,
		Type:           docType,
		Description:    in.Description,
		Status:         models.DocumentStatusUploaded,
	}
	if item != nil {
		doc.ChecklistItemID = &item.ID
	}

	transitioned := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return err
		}
		if item == nil || item.Status != checklist.StatusPending {
			return nil
		}
		var err error
		transitioned, err = applyItemTransition(tx, project.ID, checklist.Transition{
			ItemID:       item.ID,
			DocumentType: item.DocumentType,
			From:         item.Status,
			To:           checklist.StatusUploaded,
			Source:       checklist.SourceDocumentUpload,
		}, strPtr(actor.UserID), nil)
		return err
	})
	if err != nil {
		logAndContinue(s.logger, "remove orphaned upload", s.storage.Delete(persistentContext(ctx), key), zap.String("key", key))
		return nil, fmt.Errorf("save document: %w", err)
	}
	if transitioned {
		monitor.IncrementChecklistTransition(string(checklist.SourceDocumentUpload))
	}

	s.checklists.SyncQuietly(ctx, project.ID, nil, project.OrganizationID)

	bg := persistentContext(ctx)
	fields := []zap.Field{zap.String("project_id", project.ID), zap.String("document_id", doc.ID)}
	_, err = s.notifications.NotifyDocumentUploaded(bg, project, doc)
	logAndContinue(s.logger, "document uploaded notification", err, fields...)
	err = s.events.Publish(bg, Event{
		Type:      EventDocumentUploaded,
		ProjectID: project.ID,
		Data:      map[string]any{"documentId": doc.ID, "type": doc.Type, "checklistItemId": doc.ChecklistItemID},
	})
	logAndContinue(s.logger, "publish document uploaded", err, fields...)

	s.sign(ctx, doc)
	return doc, nil
}

// resolveItem finds the checklist item an upload belongs to: the explicit
// item when given, else the item of the same document type.
func (s *DocumentService) resolveItem(ctx context.Context, projectID, itemID string, docType checklist.DocumentType) (*models.DocumentChecklistItem, error) {
	var item models.DocumentChecklistItem
	if itemID != "" {
		err := s.db.WithContext(ctx).Where("id = ? AND project_id = ?", itemID, projectID).First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Field("checklistItemId", "checklist item does not belong to this project")
		}
		if err != nil {
			return nil, err
		}
		return &item, nil
	}
	if docType == checklist.DocumentTypeOther {
		return nil, nil
	}
	s.checklists.Ensure(ctx, projectID)
	err := s.db.WithContext(ctx).Where("project_id = ? AND document_type = ?", projectID, docType).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

type DocumentFilter struct {
	Type   string
	Status models.DocumentStatus
}

func (s *DocumentService) List(ctx context.Context, actor Actor, projectID string, filter DocumentFilter) ([]models.Document, error) {
	project, err := findProjectFor(ctx, s.db, actor, projectID)
	if err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("project_id = ?", project.ID)
	if filter.Type != "" {
		dt, ok := checklist.ParseDocumentType(filter.Type)
		if !ok {
			return nil, apperrors.Field("type", "invalid document type")
		}
		q = q.Where("type = ?", dt)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	docs := []models.Document{}
	if err := q.Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, err
	}
	for i := range docs {
		s.sign(ctx, &docs[i])
	}
	return docs, nil
}

func (s *DocumentService) find(ctx context.Context, actor Actor, id string) (*models.Document, *models.Project, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperrors.NotFound("document")
	}
	if err != nil {
		return nil, nil, err
	}
	project, err := findProjectFor(ctx, s.db, actor, doc.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return &doc, project, nil
}

func (s *DocumentService) Get(ctx context.Context, actor Actor, id string) (*models.Document, error) {
	doc, _, err := s.find(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	s.sign(ctx, doc)
	return doc, nil
}

// Validate records a consultant decision on a document and applies the same
// decision to its checklist item.
func (s *DocumentService) Validate(ctx context.Context, actor Actor, id string, decision ReviewDecision, notes string) (*models.Document, error) {
	to, ok := decision.Status()
	if !ok {
		return nil, apperrors.Field("status", "status must be APPROVED or REJECTED")
	}
	doc, project, err := s.find(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == models.DocumentStatusPending {
		return nil, apperrors.Field("status", "document has no file to validate")
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(doc).Updates(map[string]interface{}{
			"status":           models.DocumentStatus(to),
			"validated_by_id":  actor.UserID,
			"validated_at":     now,
			"validation_notes": strPtr(notes),
		}).Error; err != nil {
			return err
		}
		if doc.ChecklistItemID == nil {
			return nil
		}
		var item models.DocumentChecklistItem
		if err := tx.Where("id = ?", *doc.ChecklistItemID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if item.Status != checklist.StatusUploaded {
			return nil
		}
		return s.checklists.reviewItem(ctx, tx, actor, &item, to, notes)
	})
	if err != nil {
		return nil, err
	}

	s.checklists.SyncQuietly(ctx, project.ID, nil, project.OrganizationID)
	if to == checklist.StatusValidated {
		err = s.events.Publish(persistentContext(ctx), Event{
			Type:      EventDocumentValidated,
			ProjectID: project.ID,
			Data:      map[string]any{"documentId": doc.ID, "type": doc.Type},
		})
		logAndContinue(s.logger, "publish document validated", err, zap.String("document_id", doc.ID))
	}
	return s.Get(ctx, actor, doc.ID)
}

// Delete removes the document row and then its file. A checklist item keeps
// its status.
func (s *DocumentService) Delete(ctx context.Context, actor Actor, id string) error {
	doc, _, err := s.find(ctx, actor, id)
	if err != nil {
		return err
	}
	if actor.Role == models.RoleClient && doc.UploadedByID != actor.UserID {
		return apperrors.Forbidden("only the uploader can delete this document")
	}
	if err := s.db.WithContext(ctx).Delete(&models.Document{}, "id = ?", doc.ID).Error; err != nil {
		return err
	}
	if s.storage != nil && doc.StoragePath != "" {
		logAndContinue(s.logger, "delete stored file", s.storage.Delete(persistentContext(ctx), doc.StoragePath), zap.String("key", doc.StoragePath))
	}
	return nil
}

// Download opens the stored object behind a signed link.
func (s *DocumentService) Download(ctx context.Context, token string) (io.ReadCloser, string, error) {
	if s.signer == nil || s.storage == nil {
		return nil, "", apperrors.NotFound("file")
	}
	key, err := s.signer.Verify(token)
	if err != nil {
		return nil, "", apperrors.Forbidden(err.Error())
	}
	r, err := s.storage.Open(ctx, key)
	if err != nil {
		return nil, "", apperrors.NotFound("file")
	}
	return r, filepath.Base(key), nil
}

func (s *DocumentService) sign(ctx context.Context, doc *models.Document) {
	if s.signer == nil || doc.StoragePath == "" {
		return
	}
	url, err := s.signer.URL(ctx, doc.StoragePath)
	if err != nil {
		logAndContinue(s.logger, "sign document url", err, zap.String("document_id", doc.ID))
		return
	}
	doc.FileURL = url
}
