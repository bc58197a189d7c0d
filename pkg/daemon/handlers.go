package daemon

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cuttingtool/toolinspect/pkg/calibration"
	"github.com/cuttingtool/toolinspect/pkg/config"
	"github.com/cuttingtool/toolinspect/pkg/version"
)

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

func (s *Server) getConfig(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, config.NewEffective(s.conf))
}

// setMaterial changes the default tool material and re-evaluates the active
// result set against it, keeping any calibration offset.
func (s *Server) setMaterial(c *gin.Context) {
	var m string
	if err := c.BindJSON(&m); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	m = strings.TrimSpace(m)
	catalog := s.catalog()
	if !catalog.HasMaterial(m) {
		err := fmt.Errorf("%w %q, known materials: %s", ErrUnknownMaterial, m, strings.Join(catalog.Materials(), ", "))
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	s.conf.SetDefaultMaterial(m)
	if err := s.conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	s.mu.Lock()
	s.ws.material = m
	n := len(s.ws.reports)
	if n > 0 {
		s.ws.reports = calibration.ApplyReports(s.ws.reports, s.ws.offset, m, catalog)
		s.publishResultsLocked("material")
	}
	s.mu.Unlock()

	logrus.Infof("set tool material to %s", m)

	msg := fmt.Sprintf("set tool material to %s", m)
	if n > 0 {
		msg += fmt.Sprintf(", re-evaluated %d reports", n)
	}
	c.IndentedJSON(http.StatusCreated, msg)
}

func (s *Server) getStandards(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.catalog().Table())
}

func (s *Server) getMaterialStandards(c *gin.Context) {
	material := c.Param("material")
	angles, ok := s.catalog().Angles(material)
	if !ok {
		abortWithError(c, http.StatusNotFound, fmt.Errorf("%w %q", ErrUnknownMaterial, material))
		return
	}
	c.IndentedJSON(http.StatusOK, angles)
}

type evaluateRequest struct {
	AngleName string   `json:"angleName" binding:"required"`
	Value     *float64 `json:"value" binding:"required"`
	Material  string   `json:"material"`
}

// evaluate checks a single value. Unknown angles or materials are not an
// error: they evaluate as "Not Specified" and compliant.
func (s *Server) evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	material := req.Material
	if material == "" {
		material = s.conf.DefaultMaterial()
	}
	c.IndentedJSON(http.StatusOK, s.catalog().Evaluate(req.AngleName, *req.Value, material))
}
