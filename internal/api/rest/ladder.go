package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openmelsec/laddergen/internal/device"
	"github.com/openmelsec/laddergen/internal/formats"
	"github.com/openmelsec/laddergen/internal/pattern"
	"github.com/openmelsec/laddergen/internal/types"
	"github.com/openmelsec/laddergen/internal/validate"
)

// POST /api/v1/analyze
func (s *Server) analyzeSpec(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("LADDER_400", "Failed to read request body", err.Error()))
		return
	}

	analysis, err := s.pipe.AnalyzeJSON(raw)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// POST /api/v1/generate
func (s *Server) generateProgram(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("LADDER_400", "Failed to read request body", err.Error()))
		return
	}

	result, err := s.pipe.GenerateJSON(raw)
	if err != nil {
		var structural *validate.StructuralError
		if errors.As(err, &structural) && result != nil {
			// The partial program ships with the report so clients can
			// show both.
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  types.NewErrorResponse("LADDER_422", "Generated program failed validation", structural.Report).Error,
				"result": result,
			})
			return
		}
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// POST /api/v1/export
func (s *Server) exportProgram(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("LADDER_400", "Failed to read request body", err.Error()))
		return
	}

	result, err := s.pipe.GenerateJSON(raw)
	if err != nil {
		s.respondError(c, err)
		return
	}

	opts := formats.Options{
		ProgramName: s.cfg.Export.ProgramName,
		CPUType:     s.cfg.Target.CPUType,
	}
	if name := c.Query("program_name"); name != "" {
		opts.ProgramName = name
	}

	export := formats.Export(result.Program, result.Instructions, opts)
	c.JSON(http.StatusOK, gin.H{
		"run_id":              result.RunID,
		"program_text":        export.ProgramText,
		"program_csv":         export.ProgramCSV, // base64 UTF-16 LE
		"device_comments_csv": export.DeviceCommentsCSV,
		"instruction_count":   export.InstructionCount,
		"rung_count":          export.RungCount,
	})
}

// POST /api/v1/validate
func (s *Server) validateProgram(c *gin.Context) {
	var req struct {
		Program string `json:"program" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("LADDER_400", "Invalid request body", err.Error()))
		return
	}

	seq, err := formats.ParseIL(req.Program)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("LADDER_400", "Failed to parse IL program", err.Error()))
		return
	}

	report := validate.New().Validate(seq, device.Map{})
	c.JSON(http.StatusOK, report)
}

// respondError maps pipeline errors onto HTTP statuses.
func (s *Server) respondError(c *gin.Context, err error) {
	var (
		unresolved *pattern.UnresolvedTriggerError
		exhausted  *device.ExhaustedError
		ambiguous  *pattern.AmbiguousMatchError
		structural *validate.StructuralError
	)

	switch {
	case errors.As(err, &unresolved):
		c.JSON(http.StatusUnprocessableEntity, types.NewErrorResponse("LADDER_422", "Unresolved signal reference", err.Error()))
	case errors.As(err, &exhausted):
		c.JSON(http.StatusUnprocessableEntity, types.NewErrorResponse("LADDER_422", "Device capacity exceeded", err.Error()))
	case errors.As(err, &ambiguous):
		c.JSON(http.StatusConflict, types.NewErrorResponse("LADDER_409", "Ambiguous pattern match", err.Error()))
	case errors.As(err, &structural):
		c.JSON(http.StatusUnprocessableEntity, types.NewErrorResponse("LADDER_422", "Program failed validation", structural.Report))
	default:
		s.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("LADDER_400", "Request failed", err.Error()))
	}
}
