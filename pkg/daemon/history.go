package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cuttingtool/toolinspect/pkg/events"
	"github.com/cuttingtool/toolinspect/pkg/history"
	"github.com/cuttingtool/toolinspect/pkg/types"
)

type retentionRequest struct {
	Cron *string `json:"cron"`
	Days *int    `json:"days"`
}

func historyStatusCode(err error) int {
	if errors.Is(err, history.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) listHistory(c *gin.Context) {
	list, err := s.store.List(c.Request.Context())
	if err != nil {
		logrus.Errorf("listHistory failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []types.ReportSummary{}
	}
	c.IndentedJSON(http.StatusOK, list)
}

func (s *Server) getHistoryStats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context(), c.Query("material"))
	if err != nil {
		logrus.Errorf("getHistoryStats failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, stats)
}

func (s *Server) getHistoryReport(c *gin.Context) {
	r, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, historyStatusCode(err), err)
		return
	}
	c.IndentedJSON(http.StatusOK, r)
}

func (s *Server) getHistoryImage(c *gin.Context) {
	r, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, historyStatusCode(err), err)
		return
	}
	if !r.HasImage() {
		abortWithError(c, http.StatusNotFound, ErrNoImage)
		return
	}
	c.Data(http.StatusOK, r.ImageMIME, r.Image)
}

func (s *Server) getHistoryThumbnail(c *gin.Context) {
	b, err := s.store.Thumbnail(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, historyStatusCode(err), err)
		return
	}
	if len(b) == 0 {
		abortWithError(c, http.StatusNotFound, ErrNoImage)
		return
	}
	c.Data(http.StatusOK, "image/webp", b)
}

// loadHistoryReport makes a stored report the only active report.
func (s *Server) loadHistoryReport(c *gin.Context) {
	r, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, historyStatusCode(err), err)
		return
	}

	material := r.Material
	if material == "" {
		material = s.conf.DefaultMaterial()
	}

	s.mu.Lock()
	s.replaceResultsLocked([]types.Report{r}, material, "history")
	rs := s.resultSetLocked()
	s.mu.Unlock()

	logrus.WithField("id", r.ID).Info("loaded report from history")
	c.IndentedJSON(http.StatusOK, rs)
}

func (s *Server) deleteHistoryReport(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.Delete(c.Request.Context(), id); err != nil {
		abortWithError(c, historyStatusCode(err), err)
		return
	}
	logrus.WithField("id", id).Info("deleted report from history")
	c.IndentedJSON(http.StatusOK, "ok")
}

func (s *Server) clearHistory(c *gin.Context) {
	n, err := s.store.Clear(c.Request.Context())
	if err != nil {
		logrus.Errorf("clearHistory failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	logrus.Infof("cleared %d reports from history", n)
	c.IndentedJSON(http.StatusOK, fmt.Sprintf("deleted %d reports", n))
}

func (s *Server) retentionStatus() history.RetentionStatus {
	spec, next, _ := s.pruner.Status()
	return history.RetentionStatus{
		Cron:    spec,
		Days:    s.conf.HistoryRetentionDays(),
		Limit:   s.store.Limit(),
		NextRun: next,
	}
}

func (s *Server) getRetention(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.retentionStatus())
}

func (s *Server) setRetention(c *gin.Context) {
	var req retentionRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if req.Days != nil && *req.Days < 0 {
		abortWithError(c, http.StatusBadRequest, ErrInvalidRetention)
		return
	}
	if req.Cron != nil {
		if err := s.pruner.Schedule(*req.Cron); err != nil {
			abortWithError(c, http.StatusBadRequest, err)
			return
		}
		s.conf.SetHistoryPruneCron(*req.Cron)
	}
	if req.Days != nil {
		s.conf.SetHistoryRetentionDays(*req.Days)
	}

	if err := s.conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	st := s.retentionStatus()
	logrus.WithFields(logrus.Fields{
		"cron": st.Cron,
		"days": st.Days,
	}).Info("set history retention")
	c.IndentedJSON(http.StatusCreated, st)
}

// skipRetention postpones the next scheduled cleanup by one occurrence.
func (s *Server) skipRetention(c *gin.Context) {
	if err := s.pruner.Skip(); err != nil {
		abortWithError(c, http.StatusConflict, err)
		return
	}
	st := s.retentionStatus()
	logrus.WithField("nextRun", st.NextRun).Info("skipped next history cleanup")
	c.IndentedJSON(http.StatusOK, st)
}

func (s *Server) pruneHistoryNow(c *gin.Context) {
	removed, err := s.prune(c.Request.Context())
	if err != nil {
		logrus.Errorf("pruneHistory failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fmt.Sprintf("removed %d reports", removed))
}

// pruneHistory is the scheduled retention task.
func (s *Server) pruneHistory(ctx context.Context) error {
	_, err := s.prune(ctx)
	return err
}

// prune drops reports older than the retention period, if one is set, and
// anything beyond the history limit.
func (s *Server) prune(ctx context.Context) (int64, error) {
	var removed int64
	if days := s.conf.HistoryRetentionDays(); days > 0 {
		n, err := s.store.Prune(ctx, time.Now().AddDate(0, 0, -days))
		if err != nil {
			return removed, err
		}
		removed += n
	}

	n, err := s.store.Trim(ctx)
	if err != nil {
		return removed, err
	}
	removed += n

	if removed > 0 {
		s.hub.Publish(events.HistoryPruned, events.HistoryPrunedEvent{
			Removed: removed,
			Ts:      time.Now().Unix(),
		})
		logrus.Infof("pruned %d reports from history", removed)
	}
	return removed, nil
}
