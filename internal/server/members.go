package server

import (
	"net/http"
	"strings"

	memberdomain "github.com/brightmoja/memberpay/internal/member/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreateMember(c *gin.Context) {
	var req memberdomain.CreateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	member, err := s.memberSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"member": member})
}

func (s *Server) GetMemberByID(c *gin.Context) {
	member, err := s.memberSvc.GetByID(c.Request.Context(), memberdomain.GetMemberRequest{
		ID: c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"member": member})
}

// GetMemberEligibility reports standing for a session, derived from verified
// payments at request time rather than stored flags.
func (s *Server) GetMemberEligibility(c *gin.Context) {
	session := strings.TrimSpace(c.Query("session"))

	eligibility, err := s.memberSvc.Eligibility(c.Request.Context(), c.Param("id"), session)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, eligibility)
}

func (s *Server) GetCurrentSession(c *gin.Context) {
	current, err := s.sessionSvc.Current(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": current})
}
