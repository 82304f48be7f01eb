package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/scriptwell/scriptwell-backend/internal/crdt"
	"github.com/scriptwell/scriptwell-backend/internal/modules/script"
	scriptsteps "github.com/scriptwell/scriptwell-backend/internal/modules/script/steps"
	"github.com/scriptwell/scriptwell-backend/internal/platform/ctxutil"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
	"github.com/scriptwell/scriptwell-backend/internal/realtime"
	"github.com/scriptwell/scriptwell-backend/internal/screenplay/blocks"
)

type ScriptHandler struct {
	log     *logger.Logger
	scripts *script.Usecases
	bus     *realtime.Bus
}

func NewScriptHandler(log *logger.Logger, uc *script.Usecases, bus *realtime.Bus) *ScriptHandler {
	return &ScriptHandler{log: log.With("Handler", "ScriptHandler"), scripts: uc, bus: bus}
}

type sceneDeltaRequest struct {
	SceneID  uuid.UUID       `json:"scene_id"`
	Heading  *string         `json:"heading,omitempty"`
	Position *int            `json:"position,omitempty"`
	Blocks   *datatypes.JSON `json:"blocks,omitempty"`
}

type casUpdateRequest struct {
	BaseVersion int64               `json:"base_version"`
	Blocks      datatypes.JSON      `json:"blocks"`
	SceneDeltas []sceneDeltaRequest `json:"scene_deltas,omitempty"`
	OpID        string              `json:"op_id,omitempty"`
}

// UpdateWithCAS applies a version-guarded write. A stale base version gets
// 409 with the latest script row in the error envelope.
func (h *ScriptHandler) UpdateWithCAS(c *gin.Context) {
	scriptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondDomainError(c, errkind.Validation("bad script id"))
		return
	}
	userID, err := uuid.Parse(ctxutil.UserID(c.Request.Context()))
	if err != nil {
		RespondDomainError(c, errkind.PermissionDenied("no authenticated user"))
		return
	}
	var req casUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondDomainError(c, errkind.Validation("bad request body: %v", err))
		return
	}
	deltas := make([]scriptsteps.SceneDelta, 0, len(req.SceneDeltas))
	for _, d := range req.SceneDeltas {
		deltas = append(deltas, scriptsteps.SceneDelta{
			SceneID:  d.SceneID,
			Heading:  d.Heading,
			Position: d.Position,
			Blocks:   d.Blocks,
		})
	}
	res, err := h.scripts.UpdateScriptWithCAS(c.Request.Context(), scriptID, userID, req.BaseVersion, req.Blocks, deltas, req.OpID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, res)
}

type crdtUpdateRequest struct {
	Update  string    `json:"update"`
	Actor   string    `json:"actor"`
	SceneID uuid.UUID `json:"scene_id,omitempty"`
}

// StoreCRDTUpdate appends one base64 update to the script log and, when
// the client names the scene it edited, broadcasts it to open editors.
func (h *ScriptHandler) StoreCRDTUpdate(c *gin.Context) {
	scriptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondDomainError(c, errkind.Validation("bad script id"))
		return
	}
	var req crdtUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondDomainError(c, errkind.Validation("bad request body: %v", err))
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Update)
	if err != nil {
		RespondDomainError(c, errkind.Validation("update is not valid base64"))
		return
	}
	if err := h.scripts.StoreCRDTUpdate(c.Request.Context(), scriptID, data, req.Actor); err != nil {
		RespondDomainError(c, err)
		return
	}
	if req.SceneID != uuid.Nil {
		if err := h.scripts.StoreSceneCRDTUpdate(c.Request.Context(), scriptID, req.SceneID, data, req.Actor); err != nil {
			h.log.Warn("scene log append failed", "scene_id", req.SceneID.String(), "error", err.Error())
		}
		if err := h.bus.PublishUpdate(c.Request.Context(), req.SceneID, data); err != nil {
			h.log.Warn("update broadcast failed", "scene_id", req.SceneID.String(), "error", err.Error())
		}
	}
	c.Status(http.StatusNoContent)
}

// LoadSceneCRDT replays one scene's log and returns the merged state.
func (h *ScriptHandler) LoadSceneCRDT(c *gin.Context) {
	sceneID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondDomainError(c, errkind.Validation("bad scene id"))
		return
	}
	doc := crdt.NewDoc()
	applied, compacted, err := h.scripts.LoadSceneCRDT(c.Request.Context(), sceneID, doc)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	state, err := doc.EncodeState()
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"state":     base64.StdEncoding.EncodeToString(state),
		"applied":   applied,
		"compacted": compacted,
	})
}

// LoadCRDT replays the update log and returns the merged document state.
func (h *ScriptHandler) LoadCRDT(c *gin.Context) {
	scriptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondDomainError(c, errkind.Validation("bad script id"))
		return
	}
	doc := crdt.NewDoc()
	applied, compacted, err := h.scripts.LoadCRDT(c.Request.Context(), scriptID, doc)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	state, err := doc.EncodeState()
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"state":     base64.StdEncoding.EncodeToString(state),
		"applied":   applied,
		"compacted": compacted,
	})
}

// Snapshot returns the block list the CRDT document currently describes.
func (h *ScriptHandler) Snapshot(c *gin.Context) {
	scriptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondDomainError(c, errkind.Validation("bad script id"))
		return
	}
	list, err := h.scripts.DeriveSnapshot(c.Request.Context(), scriptID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"blocks": list})
}

type importRequest struct {
	Blocks []blocks.Block `json:"blocks"`
	Actor  string         `json:"actor"`
}

// Import seeds an empty CRDT log from existing block content.
func (h *ScriptHandler) Import(c *gin.Context) {
	scriptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondDomainError(c, errkind.Validation("bad script id"))
		return
	}
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondDomainError(c, errkind.Validation("bad request body: %v", err))
		return
	}
	if err := h.scripts.PopulateFromBlocks(c.Request.Context(), scriptID, req.Blocks, req.Actor); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PublishAwareness relays a presence ping to everyone watching the scene.
func (h *ScriptHandler) PublishAwareness(c *gin.Context) {
	sceneID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondDomainError(c, errkind.Validation("bad scene id"))
		return
	}
	payload, err := c.GetRawData()
	if err != nil {
		RespondDomainError(c, errkind.Validation("bad payload: %v", err))
		return
	}
	if err := h.bus.PublishAwareness(c.Request.Context(), sceneID, payload); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// StreamScene relays the scene's update and awareness channels over SSE
// until the client disconnects.
func (h *ScriptHandler) StreamScene(c *gin.Context) {
	sceneID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondDomainError(c, errkind.Validation("bad scene id"))
		return
	}
	sub, err := h.bus.Subscribe(c.Request.Context(),
		realtime.UpdatesChannel(sceneID),
		realtime.AwarenessChannel(sceneID),
	)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	updates := realtime.UpdatesChannel(sceneID)
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			name := "awareness"
			if ev.Channel == updates {
				name = "update"
			}
			c.SSEvent(name, gin.H{"payload": base64.StdEncoding.EncodeToString(ev.Payload)})
			c.Writer.Flush()
		}
	}
}
