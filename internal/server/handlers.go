package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"modsync/internal/api"
	"modsync/internal/modsync"
)

// uploadField is the multipart form field holding upload content.
const uploadField = "upload"

func writeError(c *gin.Context, err error) {
	status, body := api.ErrorFor(err)
	if status >= http.StatusInternalServerError {
		c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, fmt.Errorf("reading body: %w", err))
			return false
		}
		writeError(c, fmt.Errorf("%w: invalid json body: %v", modsync.ErrInvalidArgument, err))
		return false
	}
	return true
}

func (s *Server) hello(c *gin.Context) {
	c.JSON(http.StatusOK, api.HelloResponse{Version: s.opts.Version})
}

func (s *Server) createModpack(c *gin.Context) {
	var in api.ModpackInput
	if !bindJSON(c, &in) {
		return
	}
	mp, err := s.svc.CreateModpack(c.Request.Context(), in.Domain())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.FromModpack(mp))
}

func (s *Server) listModpacks(c *gin.Context) {
	modpacks, err := s.svc.ListModpacks(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.ModpackList{Modpacks: api.FromModpacks(modpacks)})
}

func (s *Server) getModpack(c *gin.Context) {
	view, err := s.svc.GetModpack(c.Request.Context(), c.Param("modpack_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromModpackView(view))
}

func (s *Server) updateModpack(c *gin.Context) {
	var in api.ModpackInput
	if !bindJSON(c, &in) {
		return
	}
	mp, err := s.svc.UpdateModpack(c.Request.Context(), c.Param("modpack_id"), in.Domain())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromModpack(mp))
}

func (s *Server) deleteModpack(c *gin.Context) {
	if err := s.svc.DeleteModpack(c.Request.Context(), c.Param("modpack_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) publish(c *gin.Context) {
	var req api.PublishRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Files == nil {
		writeError(c, fmt.Errorf("%w: files must be set", modsync.ErrInvalidArgument))
		return
	}
	res, err := s.svc.Publish(c.Request.Context(), modsync.PublishRequest{
		ModpackID:       c.Param("modpack_id"),
		Manifest:        req.Files,
		ExpectedVersion: req.ExpectedVersion,
		AllowEmpty:      req.AllowEmpty,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromPublishResult(res))
}

func (s *Server) upload(c *gin.Context) {
	body, err := uploadBody(c.Request)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := s.svc.Upload(c.Request.Context(), modsync.UploadRequest{
		ModpackID:    c.Param("modpack_id"),
		Path:         c.Query("file_path"),
		DeclaredHash: c.Query("hash"),
		Content:      body,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromUploadResult(res))
}

// uploadBody returns the upload field of a multipart body without buffering
// it, or the raw body for any other content type.
func uploadBody(r *http.Request) (io.Reader, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", modsync.ErrInvalidArgument, err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: missing %q form field", modsync.ErrInvalidArgument, uploadField)
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, fmt.Errorf("reading multipart body: %w", err)
			}
			return nil, fmt.Errorf("%w: reading multipart body: %v", modsync.ErrInvalidArgument, err)
		}
		if part.FormName() == uploadField {
			return part, nil
		}
	}
}

func (s *Server) planSync(c *gin.Context) {
	var req api.SyncRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := s.svc.PlanSync(c.Request.Context(), c.Param("modpack_id"), req.Files)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromSyncPlan(plan))
}

func (s *Server) changes(c *gin.Context) {
	var since int64
	if v := c.Query("since"); v != "" {
		var err error
		since, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(c, fmt.Errorf("%w: since must be an integer", modsync.ErrInvalidArgument))
			return
		}
	}
	cs, err := s.svc.ChangesSince(c.Request.Context(), c.Param("modpack_id"), since)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromChangeSet(cs))
}

func (s *Server) history(c *gin.Context) {
	id, path := c.Param("modpack_id"), c.Query("path")
	entries, err := s.svc.FileHistory(c.Request.Context(), id, path)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.HistoryResponse{ModpackID: id, Path: path, History: api.FromFileEntries(entries)})
}

func (s *Server) download(c *gin.Context) {
	c.Header("Content-Type", "application/octet-stream")
	if err := s.svc.OpenContent(c.Request.Context(), c.Param("hash"), c.Writer); err != nil {
		if c.Writer.Written() {
			// Status is already on the wire; the client sees a short body.
			c.Error(err)
			c.Abort()
			return
		}
		c.Writer.Header().Del("Content-Type")
		writeError(c, err)
	}
}
