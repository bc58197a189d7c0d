package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cuttingtool/toolinspect/pkg/analyzer"
	"github.com/cuttingtool/toolinspect/pkg/events"
	"github.com/cuttingtool/toolinspect/pkg/types"
)

// maxUploadSize bounds a single uploaded image.
const maxUploadSize = 20 << 20

// analyze runs the uploaded images through the model one at a time. Every
// report, failed ones included, is saved to history, and the reports become
// the new active result set. If the request is cancelled part way, the
// reports finished so far still become the active result set.
func (s *Server) analyze(c *gin.Context) {
	if s.model == nil {
		abortWithError(c, http.StatusServiceUnavailable, ErrNoModel)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	material := strings.TrimSpace(c.PostForm("material"))
	if material == "" {
		material = s.conf.DefaultMaterial()
	}
	if !s.catalog().HasMaterial(material) {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("%w %q", ErrUnknownMaterial, material))
		return
	}

	uploads, err := readUploads(form.File["images"])
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	if !s.analyzing.CompareAndSwap(false, true) {
		abortWithError(c, http.StatusConflict, ErrAnalysisRunning)
		return
	}
	defer s.analyzing.Store(false)

	ctx := c.Request.Context()
	// finished reports are kept even if the client goes away
	saveCtx := context.WithoutCancel(ctx)
	start := time.Now()
	reports, err := s.analyzer.AnalyzeAll(ctx, uploads, material, func(i int, r types.Report) {
		if s.store != nil {
			if err := s.store.Save(saveCtx, r); err != nil {
				logrus.WithError(err).WithField("id", r.ID).Error("failed to save report to history")
			}
		}
		s.hub.Publish(events.AnalysisProgress, events.AnalysisProgressEvent{
			Index:    i,
			Total:    len(uploads),
			FileName: r.FileName,
			ReportID: r.ID,
			Summary:  r.Summary(),
			Ts:       time.Now().Unix(),
		})
	})
	if err != nil && len(reports) > 0 {
		logrus.WithError(err).WithField("reports", len(reports)).Warn("analysis interrupted, keeping finished reports")
		s.mu.Lock()
		s.replaceResultsLocked(reports, material, "analysis")
		s.mu.Unlock()
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, analyzer.ErrNoImages) || errors.Is(err, analyzer.ErrTooManyImages) {
			status = http.StatusBadRequest
		}
		abortWithError(c, status, err)
		return
	}

	failed := 0
	for _, r := range reports {
		if r.Error != "" {
			failed++
		}
	}
	s.hub.Publish(events.AnalysisCompleted, events.AnalysisCompletedEvent{
		Reports:    len(reports),
		Failed:     failed,
		DurationMs: time.Since(start).Milliseconds(),
		Ts:         time.Now().Unix(),
	})
	logrus.WithFields(logrus.Fields{
		"reports":  len(reports),
		"failed":   failed,
		"material": material,
	}).Info("analysis finished")

	s.mu.Lock()
	s.replaceResultsLocked(reports, material, "analysis")
	rs := s.resultSetLocked()
	s.mu.Unlock()

	c.IndentedJSON(http.StatusCreated, rs)
}

// readUploads reads the uploaded files, skipping anything that is not an
// image.
func readUploads(files []*multipart.FileHeader) ([]analyzer.Upload, error) {
	var uploads []analyzer.Upload
	for _, fh := range files {
		data, err := readUpload(fh)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(http.DetectContentType(data), "image/") {
			logrus.WithField("file", fh.Filename).Warn("skipping non-image upload")
			continue
		}
		uploads = append(uploads, analyzer.Upload{FileName: fh.Filename, Data: data})
	}
	if len(uploads) == 0 {
		if len(files) > 0 {
			return nil, ErrUnsupportedUpload
		}
		return nil, analyzer.ErrNoImages
	}
	return uploads, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > maxUploadSize {
		return nil, fmt.Errorf("%s is larger than %d MiB", fh.Filename, maxUploadSize>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return data, nil
}

func (s *Server) getReports(c *gin.Context) {
	s.mu.Lock()
	rs := s.resultSetLocked()
	s.mu.Unlock()
	c.IndentedJSON(http.StatusOK, rs)
}

// clearReports starts over with an empty result set.
func (s *Server) clearReports(c *gin.Context) {
	s.mu.Lock()
	n := len(s.ws.reports)
	s.replaceResultsLocked(nil, s.conf.DefaultMaterial(), "cleared")
	s.mu.Unlock()

	logrus.Infof("cleared %d active reports", n)
	c.IndentedJSON(http.StatusOK, fmt.Sprintf("cleared %d reports", n))
}

func (s *Server) getReportImage(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	r, err := s.reportLocked(idx)
	s.mu.Unlock()
	if err != nil {
		abortWithError(c, http.StatusNotFound, err)
		return
	}
	if !r.HasImage() {
		abortWithError(c, http.StatusNotFound, ErrNoImage)
		return
	}
	c.Data(http.StatusOK, r.ImageMIME, r.Image)
}

func (s *Server) reportLocked(idx int) (types.Report, error) {
	if len(s.ws.reports) == 0 {
		return types.Report{}, ErrNoResults
	}
	if idx < 0 || idx >= len(s.ws.reports) {
		return types.Report{}, fmt.Errorf("%w: %d, have %d reports", ErrReportOutOfRange, idx, len(s.ws.reports))
	}
	return s.ws.reports[idx], nil
}
