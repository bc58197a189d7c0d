package daemon

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cuttingtool/toolinspect/pkg/analyzer"
	"github.com/cuttingtool/toolinspect/pkg/export"
	"github.com/cuttingtool/toolinspect/pkg/types"
)

// recommend asks the model for tool design advice on the successful
// measurements of the active result set. The answer is markdown.
func (s *Server) recommend(c *gin.Context) {
	if s.model == nil {
		abortWithError(c, http.StatusServiceUnavailable, ErrNoModel)
		return
	}

	var p analyzer.WorkpieceProfile
	if err := c.BindJSON(&p); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	var results []types.AngleMeasurement
	for _, r := range s.ws.reports {
		if r.Error == "" {
			results = append(results, r.Results...)
		}
	}
	s.mu.Unlock()

	text, err := s.analyzer.Recommend(c.Request.Context(), results, p)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, analyzer.ErrIncompleteProfile) || errors.Is(err, analyzer.ErrNoMeasurements) {
			status = http.StatusBadRequest
		}
		logrus.Errorf("recommend failed: %v", err)
		abortWithError(c, status, err)
		return
	}

	c.IndentedJSON(http.StatusOK, text)
}

// exportFormat accepts the plain format names as well as chart.png and
// chart.html.
func exportFormat(param string) (export.Format, error) {
	return export.ParseFormat(strings.TrimPrefix(param, "chart."))
}

func (s *Server) export(c *gin.Context) {
	f, err := exportFormat(c.Param("format"))
	if err != nil {
		abortWithError(c, http.StatusNotFound, err)
		return
	}

	s.mu.Lock()
	reports := s.ws.reports
	s.mu.Unlock()
	if len(reports) == 0 {
		abortWithError(c, http.StatusConflict, ErrNoResults)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, f, reports); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, export.ErrNothingToChart) {
			status = http.StatusConflict
		}
		logrus.Errorf("export %s failed: %v", f, err)
		abortWithError(c, status, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, f.FileName()))
	c.Data(http.StatusOK, f.ContentType(), buf.Bytes())
}
