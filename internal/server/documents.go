package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/qmlabs-dsdi/coa-processor/constants"
	"github.com/qmlabs-dsdi/coa-processor/internal/common"
	"github.com/qmlabs-dsdi/coa-processor/internal/export"
	"github.com/qmlabs-dsdi/coa-processor/internal/llm"
)

type processRequest struct {
	CompoundID     uuid.UUID `json:"compound_id" binding:"required"`
	TemplateID     uuid.UUID `json:"template_id" binding:"required"`
	DocumentIDs    []string  `json:"document_ids"`
	Source         string    `json:"source"`
	ForceReprocess bool      `json:"force_reprocess"`
}

func (s *Server) processDirectory(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	res, err := s.orch.Process(c.Request.Context(), s.newLocal(), req.CompoundID, req.TemplateID, req.ForceReprocess)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, res, res.Message)
}

func (s *Server) processFromVault(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if !s.cfg.Vault.Enabled {
		respondError(c, http.StatusServiceUnavailable,
			common.NewAppError("VAULT_DISABLED", "vault integration is not enabled", nil))
		return
	}
	if len(req.DocumentIDs) == 0 {
		respondError(c, http.StatusBadRequest,
			common.NewAppError("INVALID_INPUT", "document_ids must not be empty", common.ErrInvalidInput))
		return
	}

	src := s.newVault(req.DocumentIDs)
	defer src.Close()

	res, err := s.orch.Process(c.Request.Context(), src, req.CompoundID, req.TemplateID, req.ForceReprocess)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, res, res.Message)
}

// processHybrid routes to the vault when it is enabled and document ids were
// given, otherwise to the local directory.
func (s *Server) processHybrid(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	useVault := req.Source == "vault" ||
		(req.Source != "directory" && s.cfg.Vault.Enabled && len(req.DocumentIDs) > 0)
	if useVault {
		if !s.cfg.Vault.Enabled {
			respondError(c, http.StatusServiceUnavailable,
				common.NewAppError("VAULT_DISABLED", "vault integration is not enabled", nil))
			return
		}
		src := s.newVault(req.DocumentIDs)
		defer src.Close()
		res, err := s.orch.Process(c.Request.Context(), src, req.CompoundID, req.TemplateID, req.ForceReprocess)
		if err != nil {
			respondDomainError(c, err)
			return
		}
		respondOK(c, res, res.Message)
		return
	}

	res, err := s.orch.Process(c.Request.Context(), s.newLocal(), req.CompoundID, req.TemplateID, req.ForceReprocess)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, res, res.Message)
}

func (s *Server) pairFromQuery(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	compoundID, err := uuid.Parse(c.Query("compound_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest,
			common.NewAppError("INVALID_INPUT", "compound_id must be a valid UUID", common.ErrInvalidInput))
		return uuid.Nil, uuid.Nil, false
	}
	templateID, err := uuid.Parse(c.Query("template_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest,
			common.NewAppError("INVALID_INPUT", "template_id must be a valid UUID", common.ErrInvalidInput))
		return uuid.Nil, uuid.Nil, false
	}
	return compoundID, templateID, true
}

func (s *Server) checkCache(c *gin.Context) {
	compoundID, templateID, ok := s.pairFromQuery(c)
	if !ok {
		return
	}

	check, err := s.orch.CheckCache(c.Request.Context(), s.newLocal(), compoundID, templateID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, check, "")
}

func (s *Server) clearCache(c *gin.Context) {
	compoundID, templateID, ok := s.pairFromQuery(c)
	if !ok {
		return
	}

	n, err := s.orch.ClearCache(c.Request.Context(), compoundID, templateID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": n}, fmt.Sprintf("removed %d cache entries", n))
}

func (s *Server) cacheStatus(c *gin.Context) {
	stats, err := s.orch.CacheStatus(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, stats, "")
}

// batchAnalysis rebuilds batch records from the persisted fields of every
// completed document for a compound, independent of the cache.
func (s *Server) batchAnalysis(c *gin.Context) {
	compoundID, err := uuid.Parse(c.Param("compound_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest,
			common.NewAppError("INVALID_INPUT", "compound_id must be a valid UUID", common.ErrInvalidInput))
		return
	}

	records, err := s.recordsFromFields(c, compoundID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, gin.H{"batch_data": records, "total": len(records)}, "")
}

func (s *Server) recordsFromFields(c *gin.Context, compoundID uuid.UUID) ([]llm.BatchRecord, error) {
	ctx := c.Request.Context()
	docs, err := s.docs.ListByCompound(ctx, s.pool, compoundID, constants.StatusCompleted)
	if err != nil {
		return nil, err
	}

	records := make([]llm.BatchRecord, 0, len(docs))
	for _, doc := range docs {
		fields, err := s.fields.ListByDocument(ctx, s.pool, doc.ID)
		if err != nil {
			return nil, err
		}
		rec := llm.NewEmptyRecord(doc.Filename)
		for _, f := range fields {
			switch f.FieldName {
			case "batch_number":
				rec.BatchNumber = f.FieldValue
			case "manufacture_date":
				rec.ManufactureDate = f.FieldValue
			case "manufacturer":
				rec.Manufacturer = f.FieldValue
			default:
				rec.TestResults[f.FieldName] = f.FieldValue
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// uploadDocument saves a PDF into the processing directory and records it as
// a pending document. Extraction happens on the next batch run, not here.
func (s *Server) uploadDocument(c *gin.Context) {
	compoundID, err := uuid.Parse(c.PostForm("compound_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest,
			common.NewAppError("INVALID_INPUT", "compound_id must be a valid UUID", common.ErrInvalidInput))
		return
	}
	var templateID *uuid.UUID
	if raw := c.PostForm("template_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest,
				common.NewAppError("INVALID_INPUT", "template_id must be a valid UUID", common.ErrInvalidInput))
			return
		}
		templateID = &id
	}

	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest,
			common.NewAppError("INVALID_INPUT", "file is required", common.ErrInvalidInput))
		return
	}
	filename := filepath.Base(file.Filename)
	if !constants.IsPDFExt(filepath.Ext(filename)) {
		respondError(c, http.StatusBadRequest,
			common.NewAppError("INVALID_INPUT", "only PDF files are accepted", common.ErrInvalidInput))
		return
	}

	dir := s.cfg.Processing.PDFDirectory
	if err := os.MkdirAll(dir, 0o755); err != nil {
		respondDomainError(c, common.WrapError(err, "creating upload directory"))
		return
	}
	if err := c.SaveUploadedFile(file, filepath.Join(dir, filename)); err != nil {
		respondDomainError(c, common.WrapError(err, "saving uploaded file"))
		return
	}

	doc, err := s.docs.CreatePending(c.Request.Context(), s.pool, compoundID, templateID, filename)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	s.logger.Info("http.document_uploaded", "filename", filename, "document_id", doc.ID)
	c.JSON(http.StatusCreated, ApiResponse{Success: true, Data: doc, Message: "document uploaded"})
}

// getDocument returns one document row with its extracted fields.
func (s *Server) getDocument(c *gin.Context) {
	id, ok := s.idFromPath(c)
	if !ok {
		return
	}

	doc, err := s.docs.GetByID(c.Request.Context(), s.pool, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	fields, err := s.fields.ListByDocument(c.Request.Context(), s.pool, doc.ID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, gin.H{"document": doc, "extracted_fields": fields}, "")
}

// batchTable serves the cached batch for the pair as an XLSX download.
func (s *Server) batchTable(c *gin.Context) {
	compoundID, templateID, ok := s.pairFromQuery(c)
	if !ok {
		return
	}

	check, err := s.orch.CheckCache(c.Request.Context(), nil, compoundID, templateID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if !check.Cached || len(check.Entry.BatchData) == 0 {
		respondError(c, http.StatusNotFound,
			common.NewAppError("NOT_FOUND", "no batch data available; process documents first", common.ErrNotFound))
		return
	}

	data, err := export.BuildBatchWorkbook(check.Entry.BatchData, s.logger)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="batch_analysis.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
