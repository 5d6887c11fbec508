package dashboard

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"comexstat/internal/cache"
)

type Server struct {
	R      *gin.Engine
	Data   *Dataset
	Charts *cache.Cache
	Config Config
	Logger *zap.Logger
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type rowsResponse struct {
	Page   int        `json:"page"`
	Pages  int        `json:"pages"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// NewServer wires the router, chart cache and middleware.
func NewServer(data *Dataset, charts *cache.Cache, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 6
	}

	g := gin.New()

	// Request logging
	g.Use(func(cn *gin.Context) {
		start := time.Now()
		cn.Next()
		logger.Info("http_request",
			zap.String("method", cn.Request.Method),
			zap.String("path", cn.Request.URL.Path),
			zap.Int("status", cn.Writer.Status()),
			zap.String("ip", cn.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		)
	})

	g.Use(gin.Recovery())

	g.Use(func(cn *gin.Context) {
		if cfg.CORSOrigin != "" {
			cn.Writer.Header().Set("Access-Control-Allow-Origin", cfg.CORSOrigin)
		}
		cn.Next()
	})

	s := &Server{R: g, Data: data, Charts: charts, Config: cfg, Logger: logger}

	g.GET("/healthz", func(cn *gin.Context) { cn.JSON(http.StatusOK, gin.H{"ok": true}) })
	g.GET("/", s.getPage)
	g.GET("/histogram.svg", s.getHistogram)
	g.GET("/api/rows", s.getRows)

	return s
}

// --- Helpers ---

func (s *Server) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, apiError{Code: "bad_request", Message: msg})
}

func (s *Server) internalError(c *gin.Context, where string, err error) {
	s.Logger.Error("internal_error", zap.String("where", where), zap.Error(err))
	c.JSON(http.StatusInternalServerError, apiError{Code: "internal_server_error", Message: "internal server error"})
}

func parsePage(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func (s *Server) column(c *gin.Context) (string, bool) {
	col := strings.TrimSpace(c.Query("col"))
	if col == "" {
		return s.Data.Default, true
	}
	if !s.Data.Has(col) {
		s.badRequest(c, "unknown column: "+col)
		return "", false
	}
	return col, true
}

// --- Handlers ---

func (s *Server) getPage(c *gin.Context) {
	col, ok := s.column(c)
	if !ok {
		return
	}
	page, rows := s.Data.Page(parsePage(c.Query("page")), s.Config.PageSize)
	pages := s.Data.Pages(s.Config.PageSize)

	data := pageData{
		Title:     s.Config.Title,
		Subtitle:  s.Config.Subtitle,
		Footer:    s.Config.Footer,
		Info:      s.Config.Info,
		Source:    s.Config.SourceName,
		SourceURL: s.Config.SourceURL,
		Header:    rows.Header,
		Rows:      rows.Rows,
		Page:      page,
		Pages:     pages,
		Columns:   s.Data.Columns,
		Selected:  col,
		X:         s.Data.X,
	}
	if page > 1 {
		data.Prev = page - 1
	}
	if page < pages {
		data.Next = page + 1
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.internalError(c, "page", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) getHistogram(c *gin.Context) {
	col, ok := s.column(c)
	if !ok {
		return
	}

	if s.Charts != nil {
		if body, ok := s.Charts.Get(col); ok {
			c.Header("X-Cache", "hit")
			c.Data(http.StatusOK, "image/svg+xml", body)
			return
		}
	}

	bins, err := s.Data.Histogram(col)
	if err != nil {
		s.internalError(c, "histogram", err)
		return
	}
	var buf bytes.Buffer
	RenderHistogram(&buf, s.Data.X, col, bins)
	body := buf.Bytes()

	if s.Charts != nil {
		s.Charts.Set(col, body)
	}
	c.Header("X-Cache", "miss")
	c.Data(http.StatusOK, "image/svg+xml", body)
}

func (s *Server) getRows(c *gin.Context) {
	page, rows := s.Data.Page(parsePage(c.Query("page")), s.Config.PageSize)
	c.JSON(http.StatusOK, rowsResponse{
		Page:   page,
		Pages:  s.Data.Pages(s.Config.PageSize),
		Header: rows.Header,
		Rows:   rows.Rows,
	})
}
