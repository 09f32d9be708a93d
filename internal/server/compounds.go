package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/qmlabs-dsdi/coa-processor/internal/common"
)

type compoundRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (s *Server) idFromPath(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest,
			common.NewAppError("INVALID_INPUT", "id must be a valid UUID", common.ErrInvalidInput))
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) listCompounds(c *gin.Context) {
	compounds, err := s.compounds.List(c.Request.Context(), s.pool)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, compounds, "")
}

func (s *Server) createCompound(c *gin.Context) {
	var req compoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	compound, err := s.compounds.Create(c.Request.Context(), s.pool, req.Name, req.Description)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ApiResponse{Success: true, Data: compound})
}

func (s *Server) getCompound(c *gin.Context) {
	id, ok := s.idFromPath(c)
	if !ok {
		return
	}
	compound, err := s.compounds.GetByID(c.Request.Context(), s.pool, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, compound, "")
}

func (s *Server) updateCompound(c *gin.Context) {
	id, ok := s.idFromPath(c)
	if !ok {
		return
	}
	var req compoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	compound, err := s.compounds.Update(c.Request.Context(), s.pool, id, req.Name, req.Description)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, compound, "")
}

func (s *Server) deleteCompound(c *gin.Context) {
	id, ok := s.idFromPath(c)
	if !ok {
		return
	}
	if err := s.compounds.Delete(c.Request.Context(), s.pool, id); err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, nil, "compound deleted")
}
