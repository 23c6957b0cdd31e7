package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"xrmkit.io/xrmkit/internal/api/middleware"
	"xrmkit.io/xrmkit/internal/entity"
	"xrmkit.io/xrmkit/internal/optionset"
	apperrors "xrmkit.io/xrmkit/internal/pkg/errors"
)

// PayloadRequest is the body of POST /entities/:entity/payload. Lookup
// attributes take {"id", "logical_name"} objects and option sets take
// {"value", "label"} objects.
type PayloadRequest struct {
	ID         string                     `json:"id"`
	Kind       string                     `json:"kind"`
	Attributes map[string]json.RawMessage `json:"attributes"`
	AllFields  bool                       `json:"all_fields"`
}

// PayloadResponse carries the mandatory check, the diagnostics raised
// while applying attributes, and the create/update payload. Error is set
// when mandatory fields are missing.
type PayloadResponse struct {
	Entity      string                `json:"entity"`
	Valid       bool                  `json:"valid"`
	Missing     []entity.MissingField `json:"missing"`
	Diagnostics []entity.Diagnostic   `json:"diagnostics"`
	Payload     *entity.Payload       `json:"payload"`
	XML         string                `json:"xml"`
	Error       *apperrors.AppError   `json:"error,omitempty"`
}

// BuildPayload handles POST /entities/:entity/payload. It responds 422 with
// the full preview when mandatory fields are missing.
func (s *Server) BuildPayload(c *gin.Context) {
	var req PayloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ErrInvalidRequestFieldf("body"))
		return
	}

	log := middleware.Logger(c.Request.Context())
	rec := &entity.Recorder{}
	e, err := s.newEntity(c, req.Kind, entity.WithReporter(entity.Tee(rec, entity.LogReporter{Logger: log})))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := e.SetID(req.ID); err != nil {
		_ = c.Error(err)
		return
	}

	names := make([]string, 0, len(req.Attributes))
	for name := range req.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value, err := decodeValue(req.Attributes[name])
		if err != nil {
			_ = c.Error(apperrors.ErrInvalidRequestFieldf("attributes." + name))
			return
		}
		if err := e.Set(name, value); err != nil {
			_ = c.Error(err)
			return
		}
	}

	valid, missing := e.CheckMandatories()
	payload := e.ToCreateUpdatePayload(req.AllFields)
	xml, err := payload.XML()
	if err != nil {
		_ = c.Error(fmt.Errorf("encode payload: %w", err))
		return
	}

	resp := PayloadResponse{
		Entity:      e.String(),
		Valid:       valid,
		Missing:     missing,
		Diagnostics: rec.Diagnostics(),
		Payload:     payload,
		XML:         xml,
	}
	if resp.Missing == nil {
		resp.Missing = []entity.MissingField{}
	}

	status := http.StatusOK
	if appErr, ok := apperrors.IsAppError(e.MandatoryError(missing)); ok {
		resp.Error = appErr
		status = appErr.HTTPStatus
		log.Info("Payload preview is missing mandatory fields",
			zap.String("entity", e.LogicalName()),
			zap.Int("missing", len(missing)),
		)
	}
	c.JSON(status, resp)
}

func (s *Server) newEntity(c *gin.Context, kindName string, opts ...entity.Option) (*entity.Entity, error) {
	ctx := c.Request.Context()
	if kindName == "" {
		return entity.New(ctx, s.source, c.Param("entity"), opts...)
	}
	kind, err := s.kinds.Get(kindName)
	if err != nil {
		return nil, err
	}
	return kind.New(ctx, s.source, c.Param("entity"), opts...)
}

// decodeValue turns one JSON attribute into an entity property value.
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	switch val := v.(type) {
	case nil, string, bool:
		return val, nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		return val.Float64()
	case map[string]any:
		return decodeObject(val)
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
}

func decodeObject(obj map[string]any) (any, error) {
	if name, ok := obj["logical_name"].(string); ok {
		id, _ := obj["id"].(string)
		return entity.NewReference(name, id), nil
	}
	if n, ok := obj["value"].(json.Number); ok {
		code, err := n.Int64()
		if err != nil {
			return nil, err
		}
		label, _ := obj["label"].(string)
		return optionset.New(int(code), label), nil
	}
	return nil, fmt.Errorf("object needs logical_name or value")
}
