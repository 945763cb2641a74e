package server

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/xkilldash9x/newsroom-scraper/api/schemas"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform/linkedin"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform/twitter"
)

// Twitter flags that default to true when omitted.
const (
	defaultIncludeRetweets = true
	defaultExpandThreads   = true
)

func (s *Server) handleLinkedInAuth(w http.ResponseWriter, r *http.Request) {
	var req schemas.LinkedInAuthRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err, schemas.LinkedInAuthResponse{Error: err.Error()})
		return
	}
	res, err := s.deps.LinkedIn.Authenticate(r.Context(), linkedin.Credentials{
		Email:    req.Email,
		Password: req.Password,
		LiAt:     req.LiAtCookie,
	})
	if err != nil {
		writeError(w, err, schemas.LinkedInAuthResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, schemas.LinkedInAuthResponse{
		Success:     true,
		ProfileName: res.ProfileName,
		SessionID:   res.SessionID,
	})
}

func (s *Server) handleLinkedInFetch(w http.ResponseWriter, r *http.Request) {
	var req schemas.LinkedInFetchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err, schemas.LinkedInFetchResponse{Posts: []schemas.ContentRecord{}, Error: err.Error()})
		return
	}
	posts, err := s.deps.LinkedIn.Fetch(r.Context(), req.SessionID, linkedin.FetchOptions{
		MaxPosts:       req.MaxPosts,
		Hashtags:       req.Hashtags,
		IncludeReposts: req.IncludeReposts,
	})
	if err != nil {
		writeError(w, err, schemas.LinkedInFetchResponse{Posts: []schemas.ContentRecord{}, Error: err.Error()})
		return
	}
	s.recordFetch(r.Context(), "linkedin", len(posts))
	writeJSON(w, http.StatusOK, schemas.LinkedInFetchResponse{
		Success:      true,
		Posts:        nonNil(posts),
		FetchedCount: len(posts),
	})
}

func (s *Server) handleLinkedInTest(w http.ResponseWriter, r *http.Request) {
	var req schemas.SessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err, schemas.LinkedInTestResponse{Error: err.Error()})
		return
	}
	name, err := s.deps.LinkedIn.Test(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, err, schemas.LinkedInTestResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, schemas.LinkedInTestResponse{Success: true, ProfileName: name})
}

func (s *Server) handleLinkedInDisconnect(w http.ResponseWriter, r *http.Request) {
	var req schemas.SessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err, errorBody(err))
		return
	}
	s.deps.LinkedIn.Disconnect(req.SessionID)
	writeJSON(w, http.StatusOK, schemas.SuccessResponse{Success: true})
}

func (s *Server) handleTwitterAuth(w http.ResponseWriter, r *http.Request) {
	var req schemas.TwitterAuthRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err, schemas.TwitterAuthResponse{Error: err.Error()})
		return
	}
	res, err := s.deps.Twitter.Authenticate(r.Context(), twitter.Credentials{
		AuthToken: req.AuthToken,
		CT0:       req.CT0,
		Username:  req.Username,
		Password:  req.Password,
	})
	if err != nil {
		writeError(w, err, schemas.TwitterAuthResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, schemas.TwitterAuthResponse{
		Success:   true,
		Username:  res.Username,
		SessionID: res.SessionID,
	})
}

func (s *Server) handleTwitterFetch(w http.ResponseWriter, r *http.Request) {
	var req schemas.TwitterFetchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err, schemas.TwitterFetchResponse{Tweets: []schemas.ContentRecord{}, Error: err.Error()})
		return
	}
	kind, err := twitter.ParseTimeline(req.TimelineType)
	if err != nil {
		err = badRequest(err.Error())
		writeError(w, err, schemas.TwitterFetchResponse{Tweets: []schemas.ContentRecord{}, Error: err.Error()})
		return
	}

	tweets, err := s.deps.Twitter.Fetch(r.Context(), req.SessionID, twitter.FetchOptions{
		Timeline:        kind,
		MaxTweets:       req.MaxTweets,
		IncludeRetweets: boolOr(req.IncludeRetweets, defaultIncludeRetweets),
		IncludeReplies:  req.IncludeReplies,
		Hashtags:        req.Hashtags,
		ExpandThreads:   boolOr(req.ExpandThreads, defaultExpandThreads),
	})
	if err != nil {
		writeError(w, err, schemas.TwitterFetchResponse{Tweets: []schemas.ContentRecord{}, Error: err.Error()})
		return
	}
	s.recordFetch(r.Context(), "twitter", len(tweets))
	writeJSON(w, http.StatusOK, schemas.TwitterFetchResponse{
		Success:      true,
		Tweets:       nonNil(tweets),
		FetchedCount: len(tweets),
	})
}

func (s *Server) handleTwitterTest(w http.ResponseWriter, r *http.Request) {
	var req schemas.SessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err, schemas.TwitterTestResponse{Error: err.Error()})
		return
	}
	name, err := s.deps.Twitter.Test(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, err, schemas.TwitterTestResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, schemas.TwitterTestResponse{Success: true, Username: name})
}

func (s *Server) handleTwitterDisconnect(w http.ResponseWriter, r *http.Request) {
	var req schemas.SessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err, errorBody(err))
		return
	}
	s.deps.Twitter.Disconnect(req.SessionID)
	writeJSON(w, http.StatusOK, schemas.SuccessResponse{Success: true})
}

// recordFetch writes to the fetch log when one is configured. Failures are logged only.
func (s *Server) recordFetch(ctx context.Context, source string, count int) {
	if s.deps.FetchLog == nil {
		return
	}
	if _, err := s.deps.FetchLog.Record(ctx, source, count); err != nil {
		s.logger.Warn("Could not record fetch.", zap.String("source", source), zap.Error(err))
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func nonNil(records []schemas.ContentRecord) []schemas.ContentRecord {
	if records == nil {
		return []schemas.ContentRecord{}
	}
	return records
}
