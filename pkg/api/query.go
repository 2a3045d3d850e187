package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/rag"
	"github.com/waqedi/platform/pkg/retrieval"
)

// SearchRequest is the POST /search body. The tenant comes from the token.
type SearchRequest struct {
	Query      string  `json:"query"`
	TopK       int     `json:"top_k"`
	Language   string  `json:"language,omitempty"`
	MinScore   float64 `json:"min_score,omitempty"`
	DocumentID string  `json:"document_id,omitempty"`
}

// SearchResponse carries the ranked hits.
type SearchResponse struct {
	Results    []retrieval.RetrievedChunk `json:"results"`
	TotalFound int                        `json:"total_found"`
}

// Search handles POST /api/v1/search.
func (s *Server) Search(c *gin.Context) {
	ident := identity(c)

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeProblem(c, faults.Validationf("INVALID_BODY", "malformed search request: %v", err))
		return
	}

	results, err := s.searcher.Search(c.Request.Context(), retrieval.Request{
		TenantID:   ident.TenantID,
		Query:      req.Query,
		TopK:       req.TopK,
		Language:   req.Language,
		MinScore:   req.MinScore,
		DocumentID: req.DocumentID,
	})
	if err != nil {
		s.writeProblem(c, err)
		return
	}
	if results == nil {
		results = []retrieval.RetrievedChunk{}
	}
	c.JSON(http.StatusOK, SearchResponse{Results: results, TotalFound: len(results)})
}

// QueryRequest is the POST /query body.
type QueryRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	TopK           int    `json:"top_k"`
	Language       string `json:"language,omitempty"`
}

// Query handles POST /api/v1/query, the synchronous answering path.
func (s *Server) Query(c *gin.Context) {
	ident := identity(c)

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeProblem(c, faults.Validationf("INVALID_BODY", "malformed query request: %v", err))
		return
	}

	answer, err := s.answerer.Answer(c.Request.Context(), rag.Request{
		TenantID:       ident.TenantID,
		Query:          req.Query,
		ConversationID: req.ConversationID,
		TopK:           req.TopK,
		Language:       req.Language,
	})
	if err != nil {
		s.writeProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}
