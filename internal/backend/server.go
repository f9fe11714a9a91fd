package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"quill/internal/logging"
	"quill/internal/models"
)

// Server serves the story contract over HTTP.
type Server struct {
	store *Memory
	gen   Generator
}

func NewServer(store *Memory, gen Generator) *Server {
	return &Server{store: store, gen: gen}
}

// Router builds the gin engine with permissive CORS.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	router.POST("/generate", s.generate)
	router.GET("/stories", s.listStories)
	router.GET("/stories/:id", s.getStory)
	router.DELETE("/stories/:id", s.deleteStory)
	router.POST("/stories/:id/favorite", s.toggleFavorite)
	router.GET("/favorites", s.listFavorites)
	router.GET("/search", s.search)
	router.GET("/stats", s.stats)
	router.GET("/config", s.config)
	router.GET("/export/:id", s.export)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().Unix()})
	})
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.WithFields(map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Info("request")
	}
}

type generateRequest struct {
	Prompt   string `json:"prompt"`
	Genre    string `json:"genre"`
	Tone     string `json:"tone"`
	Length   string `json:"length"`
	Language string `json:"language"`
	Stream   bool   `json:"stream"`
}

func (r generateRequest) withDefaults() models.GenerationRequest {
	req := models.GenerationRequest{
		Prompt:   strings.TrimSpace(r.Prompt),
		Genre:    r.Genre,
		Tone:     r.Tone,
		Length:   r.Length,
		Language: r.Language,
		Stream:   r.Stream,
	}
	if req.Genre == "" {
		req.Genre = "Fantasy"
	}
	if req.Tone == "" {
		req.Tone = "Serious"
	}
	if req.Length == "" {
		req.Length = "medium"
	}
	if req.Language == "" {
		req.Language = "English"
	}
	return req
}

func (s *Server) generate(c *gin.Context) {
	var body generateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	req := body.withDefaults()
	if req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "prompt is required"})
		return
	}

	if !req.Stream {
		var sb strings.Builder
		err := s.gen.Generate(c.Request.Context(), req, func(chunk string) error {
			sb.WriteString(chunk)
			return nil
		})
		if err != nil {
			logging.Errorf("generation failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s.save(req, sb.String()))
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	var sb strings.Builder
	err := s.gen.Generate(c.Request.Context(), req, func(chunk string) error {
		sb.WriteString(chunk)
		data, err := json.Marshal(map[string]string{"content": chunk})
		if err != nil {
			return err
		}
		return writeEvent(w, string(data))
	})
	if err != nil {
		// No terminator: the client treats the stream as failed.
		logging.Errorf("streaming generation failed: %v", err)
		return
	}

	// The story is stored before [DONE] so a client listing right after
	// the terminator sees it at the head of /stories.
	s.save(req, sb.String())
	_ = writeEvent(w, "[DONE]")
}

func writeEvent(w gin.ResponseWriter, data string) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	w.Flush()
	return nil
}

func (s *Server) save(req models.GenerationRequest, content string) models.Item {
	return s.store.Add(models.Item{
		Prompt:   req.Prompt,
		Content:  content,
		Genre:    req.Genre,
		Tone:     req.Tone,
		Length:   req.Length,
		Language: req.Language,
	})
}

func (s *Server) listStories(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.All())
}

func (s *Server) listFavorites(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Favorites())
}

func (s *Server) search(c *gin.Context) {
	q, ok := c.GetQuery("q")
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "q is required"})
		return
	}
	c.JSON(http.StatusOK, s.store.Search(q))
}

func (s *Server) notFound(c *gin.Context, err error) bool {
	if errors.Is(err, ErrStoryNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Story not found"})
		return true
	}
	return false
}

func (s *Server) getStory(c *gin.Context) {
	it, err := s.store.Get(c.Param("id"))
	if s.notFound(c, err) {
		return
	}
	c.JSON(http.StatusOK, it)
}

func (s *Server) deleteStory(c *gin.Context) {
	if s.notFound(c, s.store.Delete(c.Param("id"))) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) toggleFavorite(c *gin.Context) {
	it, err := s.store.ToggleFavorite(c.Param("id"))
	if s.notFound(c, err) {
		return
	}
	c.JSON(http.StatusOK, it)
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Stats())
}

func (s *Server) config(c *gin.Context) {
	lengths := gin.H{}
	for _, l := range models.DefaultOptions.Lengths {
		lengths[l.Key] = gin.H{"min": l.Min, "max": l.Max, "label": l.Label}
	}
	c.JSON(http.StatusOK, gin.H{
		"genres":    models.DefaultOptions.Genres,
		"tones":     models.DefaultOptions.Tones,
		"lengths":   lengths,
		"languages": models.DefaultOptions.Languages,
		"examples":  models.DefaultOptions.Examples,
	})
}

func (s *Server) export(c *gin.Context) {
	id := c.Param("id")
	it, err := s.store.Get(id)
	if s.notFound(c, err) {
		return
	}
	format := c.DefaultQuery("format", "txt")
	var body, mediaType string
	switch format {
	case "txt":
		mediaType = "text/plain"
		body = fmt.Sprintf("Title: Story\nGenre: %s\nTone: %s\nLanguage: %s\nCreated: %s\nPrompt: %s\n\n---\n\n%s\n",
			it.Genre, it.Tone, it.Language, it.CreatedAt.Format(time.RFC3339), it.Prompt, it.Content)
	case "md":
		mediaType = "text/markdown"
		body = fmt.Sprintf("# Story\n\n**Genre:** %s\n**Tone:** %s\n**Language:** %s\n**Created:** %s\n\n> *Prompt: %s*\n\n---\n\n%s\n",
			it.Genre, it.Tone, it.Language, it.CreatedAt.Format(time.RFC3339), it.Prompt, it.Content)
	default:
		c.JSON(http.StatusNotFound, gin.H{"detail": "Story not found"})
		return
	}
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=story_%s.%s", short, format))
	c.Data(http.StatusOK, mediaType, []byte(body))
}
