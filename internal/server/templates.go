package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type templateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (s *Server) listTemplates(c *gin.Context) {
	templates, err := s.templates.List(c.Request.Context(), s.pool)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, templates, "")
}

func (s *Server) createTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	template, err := s.templates.Create(c.Request.Context(), s.pool, req.Name, req.Description)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ApiResponse{Success: true, Data: template})
}

func (s *Server) getTemplate(c *gin.Context) {
	id, ok := s.idFromPath(c)
	if !ok {
		return
	}
	template, err := s.templates.GetByID(c.Request.Context(), s.pool, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, template, "")
}

func (s *Server) updateTemplate(c *gin.Context) {
	id, ok := s.idFromPath(c)
	if !ok {
		return
	}
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	template, err := s.templates.Update(c.Request.Context(), s.pool, id, req.Name, req.Description)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, template, "")
}

func (s *Server) deleteTemplate(c *gin.Context) {
	id, ok := s.idFromPath(c)
	if !ok {
		return
	}
	if err := s.templates.Delete(c.Request.Context(), s.pool, id); err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, nil, "template deleted")
}
