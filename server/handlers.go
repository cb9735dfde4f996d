package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Luismorlan/msprsearch/enrichment"
	"github.com/Luismorlan/msprsearch/model"
	"github.com/Luismorlan/msprsearch/server/middlewares"
	Logger "github.com/Luismorlan/msprsearch/utils/log"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const DefaultMaxKeywords = 5

// ExtractRequest is the skill-style batch payload accepted by POST /extract.
type ExtractRequest struct {
	Values []InputRecord `json:"values"`
}

// RecordId is echoed back verbatim, whatever its JSON type.
type InputRecord struct {
	RecordId json.RawMessage        `json:"recordId"`
	Data     map[string]interface{} `json:"data"`
}

type ExtractResponse struct {
	Values []OutputRecord `json:"values"`
}

type OutputRecord struct {
	RecordId json.RawMessage `json:"recordId"`
	Data     EnrichedData    `json:"data"`
}

type EnrichedData struct {
	HashTags string `json:"HashTags"`
	Keywords string `json:"Keywords"`
}

// EnrichmentHandler serves hashtags and keywords for arbitrary texts. The
// keyword extractor is built once and shared by every request.
type EnrichmentHandler struct {
	Keywords    enrichment.KeywordExtractor
	MaxKeywords int
	Log         *logrus.Entry
}

func NewEnrichmentHandler(keywords enrichment.KeywordExtractor, maxKeywords int, log *logrus.Entry) *EnrichmentHandler {
	if log == nil {
		log = Logger.Log
	}
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywords
	}
	return &EnrichmentHandler{
		Keywords:    keywords,
		MaxKeywords: maxKeywords,
		Log:         log.WithField("component", "extract_handler"),
	}
}

// Extract answers with one record per input record, in input order. A
// record that cannot be enriched still gets an answer, with empty strings.
func (h *EnrichmentHandler) Extract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request body: " + err.Error()})
		return
	}

	resp := ExtractResponse{Values: make([]OutputRecord, 0, len(req.Values))}
	for i, rec := range req.Values {
		resp.Values = append(resp.Values, h.enrich(c.Request.Context(), i, rec))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *EnrichmentHandler) enrich(ctx context.Context, i int, rec InputRecord) (out OutputRecord) {
	out = OutputRecord{RecordId: rec.RecordId}
	if len(out.RecordId) == 0 {
		out.RecordId = json.RawMessage("null")
	}
	log := h.Log.WithFields(logrus.Fields{"record": i, "record_id": string(out.RecordId)})
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("record enrichment panicked: %v", r)
			out.Data = EnrichedData{}
		}
	}()

	text, ok := rec.Data[model.FieldText].(string)
	if !ok || strings.TrimSpace(text) == "" {
		if rec.Data[model.FieldText] != nil && !ok {
			log.Warn("record Text is not a string")
		}
		return out
	}
	out.Data.HashTags = strings.Join(enrichment.ExtractHashtags(text), " ")
	out.Data.Keywords = strings.Join(enrichment.ExtractKeywords(ctx, h.Keywords, text, h.MaxKeywords, log), " ")
	return out
}

// NewRouter builds the enrichment service. extra middlewares are installed
// before any route.
func NewRouter(h *EnrichmentHandler, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewares.RequestLogger(h.Log))
	router.Use(extra...)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	router.POST("/extract", h.Extract)
	return router
}
