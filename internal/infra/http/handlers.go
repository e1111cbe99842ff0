package http

import (
	"errors"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	"solvency/internal/domain"
	"solvency/internal/usecase"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type liabilityInput struct {
	Address string `json:"address" binding:"required,eth_addr"`
	Balance string `json:"balance" binding:"required,number"`
}

type exportRequest struct {
	EpochID     string           `json:"epoch_id" binding:"omitempty,max=128"`
	SessionID   string           `json:"session_id" binding:"required_without=Liabilities"`
	Liabilities []liabilityInput `json:"liabilities" binding:"required_without=SessionID,dive"`
}

type verifyInclusionRequest struct {
	EpochID string                 `json:"epoch_id" binding:"required"`
	Proof   *domain.InclusionProof `json:"proof" binding:"required"`
}

type verifyInclusionResponse struct {
	EpochID string      `json:"epoch_id"`
	Valid   bool        `json:"valid"`
	Root    common.Hash `json:"root"`
}

type epochListResponse struct {
	Epochs []string `json:"epochs"`
}

type historyResponse struct {
	Entries []domain.HistoryEntry `json:"entries"`
}

func (s *Server) handleListEpochs(c *gin.Context) {
	if s.exporter == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	epochs, err := s.exporter.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, epochListResponse{Epochs: epochs})
}

func (s *Server) handleLatestEpoch(c *gin.Context) {
	if s.exporter == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	ctx := c.Request.Context()
	epochID, err := s.exporter.Latest(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	info, err := s.exporter.Info(ctx, epochID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleEpochInfo(c *gin.Context) {
	if s.exporter == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	epochID := c.Param("epoch")
	if err := domain.ValidateEpochID(epochID); err != nil {
		writeError(c, err)
		return
	}
	info, err := s.exporter.Info(c.Request.Context(), epochID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleExport(c *gin.Context) {
	if s.exporter == nil {
		writeError(c, errors.New("artifact store is not configured"))
		return
	}
	ctx := c.Request.Context()
	if strings.HasPrefix(c.ContentType(), "text/csv") {
		info, err := s.exporter.ExportCSV(ctx, c.Query("epoch_id"), c.Request.Body)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, info)
		return
	}

	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	var (
		info domain.EpochInfo
		err  error
	)
	if req.SessionID != "" {
		if s.sessions == nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "coordinator is not configured")
			return
		}
		info, err = s.exporter.ExportFrom(ctx, req.EpochID, s.sessions(req.SessionID))
	} else {
		set := make(domain.LiabilitySet, 0, len(req.Liabilities))
		for i, in := range req.Liabilities {
			balance, perr := uint256.FromDecimal(in.Balance)
			if perr != nil {
				writeError(c, domain.NewInputError("balance", "entry %d: %v", i, perr))
				return
			}
			set = append(set, domain.LiabilityEntry{Address: common.HexToAddress(in.Address), Balance: balance})
		}
		info, err = s.exporter.Export(ctx, req.EpochID, set, "api")
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (s *Server) handleListArtifacts(c *gin.Context) {
	if s.store == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	epochID := c.Param("epoch")
	if err := domain.ValidateEpochID(epochID); err != nil {
		writeError(c, err)
		return
	}
	names, err := s.store.List(c.Request.Context(), epochID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"epoch_id": epochID, "artifacts": names})
}

func (s *Server) handleGetArtifact(c *gin.Context) {
	if s.store == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	epochID, name := c.Param("epoch"), c.Param("name")
	if err := domain.ValidateEpochID(epochID); err != nil {
		writeError(c, err)
		return
	}
	data, err := s.store.Get(c.Request.Context(), epochID, name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, artifactContentType(name), data)
}

func (s *Server) handleRunStage(c *gin.Context) {
	if s.pipeline == nil {
		writeError(c, errors.New("pipeline is not configured"))
		return
	}
	stage, err := domain.ParseStage(c.Param("stage"))
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := s.pipeline.RunStage(c.Request.Context(), c.Param("epoch"), stage)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleRun(c *gin.Context) {
	if s.pipeline == nil {
		writeError(c, errors.New("pipeline is not configured"))
		return
	}
	opts := usecase.RunOptions{}
	if raw := c.Query("publish"); raw != "" {
		publish, err := strconv.ParseBool(raw)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "publish must be a boolean")
			return
		}
		opts.AutoPublish = publish
	}
	run, err := s.pipeline.Run(c.Request.Context(), c.Param("epoch"), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleInclusion(c *gin.Context) {
	if s.pipeline == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		writeError(c, domain.NewInputError("address", "%q is not a hex address", raw))
		return
	}
	proof, err := s.pipeline.Inclusion(c.Request.Context(), c.Param("epoch"), common.HexToAddress(raw))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, proof)
}

func (s *Server) handleVerifyInclusion(c *gin.Context) {
	if s.pipeline == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req verifyInclusionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	if req.Proof.Balance == nil {
		writeError(c, domain.NewInputError("proof", "balance is required"))
		return
	}
	valid, err := s.pipeline.CheckInclusion(c.Request.Context(), req.EpochID, *req.Proof)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, verifyInclusionResponse{EpochID: req.EpochID, Valid: valid, Root: req.Proof.Root})
}

func (s *Server) handleOnChain(c *gin.Context) {
	if s.pipeline == nil || s.pipeline.Publisher == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "REGISTRY_UNAVAILABLE", "registry is not configured")
		return
	}
	result, err := s.pipeline.VerifyOnChain(c.Request.Context(), c.Param("epoch"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleRegistryLatest(c *gin.Context) {
	if s.registry == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "REGISTRY_UNAVAILABLE", "registry is not configured")
		return
	}
	record, err := s.registry.Latest(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, historyResponse{Entries: []domain.HistoryEntry{}})
		return
	}
	entries, err := s.history.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "limit must be a positive integer")
			return
		}
		if limit < len(entries) {
			entries = entries[:limit]
		}
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	c.JSON(http.StatusOK, historyResponse{Entries: entries})
}

func artifactContentType(name string) string {
	switch path.Ext(name) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	var details map[string]any
	var publishErr *domain.PublishFailedError
	switch {
	case errors.As(err, &publishErr):
		status, code = http.StatusBadGateway, "PUBLISH_FAILED"
		details = map[string]any{"outcome_unknown": publishErr.OutcomeUnknown}
		if errors.Is(err, domain.ErrConflict) {
			status, code = http.StatusConflict, "PUBLISH_IN_PROGRESS"
		}
	case errors.Is(err, domain.ErrInput):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrPolicyDenied):
		status, code = http.StatusForbidden, "POLICY_DENIED"
	case errors.Is(err, domain.ErrIntegrity):
		status, code = http.StatusUnprocessableEntity, "INTEGRITY_VIOLATION"
	case errors.Is(err, domain.ErrProtocol):
		status, code = http.StatusBadGateway, "PROTOCOL_ERROR"
	case errors.Is(err, domain.ErrTransientIO):
		status, code = http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"
	}
	c.JSON(status, errorResponse{Code: code, Message: err.Error(), Details: details})
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
