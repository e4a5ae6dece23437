package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lineidx/internal/index"
	"lineidx/internal/lines"
)

func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET("/health", s.health)

	v1 := engine.Group("/v1")
	if s.limiter != nil {
		v1.Use(s.limiter.middleware())
	}
	{
		v1.GET("/info", s.info)
		v1.GET("/lines/:n", s.line)
		v1.GET("/lines", compress(), s.lines)
	}

	s.registerMetrics(engine)
}

// statusFor maps reader errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, index.ErrIndexRange):
		return http.StatusNotFound
	case errors.Is(err, lines.ErrRangeOrder):
		return http.StatusBadRequest
	case errors.Is(err, lines.ErrPathNotSet):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":      err.Error(),
		"request_id": c.GetString("request_id"),
	})
}

// health is a liveness probe.
// GET /health
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type infoResponse struct {
	InstanceID string `json:"instance_id,omitempty"`
	DataPath   string `json:"data_path"`
	IndexPath  string `json:"index_path,omitempty"`
	Loaded     bool   `json:"loaded"`
	Entries    int    `json:"entries"`
	Lines      int    `json:"lines"`
	Error      string `json:"error,omitempty"`
}

// info reports what the reader is serving. An index that cannot be opened
// is reported, not treated as a failure.
// GET /v1/info
func (s *Server) info(c *gin.Context) {
	resp := infoResponse{InstanceID: s.instanceID}
	_ = s.withReader(func(r *lines.Reader) error {
		resp.DataPath = r.DataPath()
		resp.IndexPath, _ = r.IndexPath()
		if err := r.EnsureIndexOpen(); err != nil {
			resp.Error = err.Error()
		}
		resp.Loaded = r.Loaded()
		resp.Entries, _ = r.Entries()
		resp.Lines, _ = r.LineCount()
		return nil
	})
	c.JSON(http.StatusOK, resp)
}

// line returns one line as raw bytes.
// GET /v1/lines/:n
func (s *Server) line(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		abort(c, http.StatusBadRequest, errors.New("line number must be an integer"))
		return
	}

	var line []byte
	err = s.withReader(func(r *lines.Reader) error {
		var err error
		line, err = r.LineAt(n)
		return err
	})
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", line)
}

type linesResponse struct {
	Start int      `json:"start"`
	Lines []string `json:"lines"`
}

// lines returns a range of lines as JSON. Exactly one of end and count must
// be given. A range that fails part way returns the error, not the partial
// result.
// GET /v1/lines?start=S&end=E
// GET /v1/lines?start=S&count=C
func (s *Server) lines(c *gin.Context) {
	start, err := strconv.Atoi(c.Query("start"))
	if err != nil {
		abort(c, http.StatusBadRequest, errors.New("start is required and must be an integer"))
		return
	}
	endText, hasEnd := c.GetQuery("end")
	countText, hasCount := c.GetQuery("count")
	if hasEnd == hasCount {
		abort(c, http.StatusBadRequest, errors.New("exactly one of end or count is required"))
		return
	}
	bound := endText
	if hasCount {
		bound = countText
	}
	n, err := strconv.Atoi(bound)
	if err != nil {
		abort(c, http.StatusBadRequest, errors.New("end and count must be integers"))
		return
	}

	var got [][]byte
	err = s.withReader(func(r *lines.Reader) error {
		var cur *lines.Cursor
		if hasCount {
			cur = r.LinesFrom(start, n)
		} else {
			cur = r.Lines(start, n)
		}
		var err error
		got, err = cur.Collect()
		return err
	})
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}

	resp := linesResponse{Start: start, Lines: make([]string, len(got))}
	for i, l := range got {
		resp.Lines[i] = string(l)
	}
	c.JSON(http.StatusOK, resp)
}
