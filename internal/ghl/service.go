package ghl

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// Service implements the composite upstream operations: the calls that fan
// out into more than one request. Single-call pass-throughs go straight to
// the Client from the HTTP layer.
type Service struct {
	logger *zap.Logger
	client *Client
}

// NewService creates a new Service.
func NewService(logger *zap.Logger, client *Client) *Service {
	return &Service{logger: logger, client: client}
}

// ConversationsWithDetails searches conversations, then fetches the full
// detail of each result sequentially. A failed detail call degrades that
// entry to an inline error object; it never aborts the batch.
func (s *Service) ConversationsWithDetails(ctx context.Context, token string, params url.Values) *Envelope {
	searchEnv := s.client.Get(ctx, "conversations_search", token, VersionConversations, "/conversations/search", params)
	if !searchEnv.OK() {
		return searchEnv
	}

	conversations := sliceField(searchEnv.Body, "conversations")
	detailed := make([]any, 0, len(conversations))
	for _, conv := range conversations {
		id, _ := asMap(conv)["id"].(string)
		if id == "" {
			continue
		}

		detailEnv := s.client.Get(ctx, "conversation_detail", token, VersionConversations, "/conversations/"+id, nil)
		if detailEnv.OK() {
			detailed = append(detailed, detailEnv.Body)
			continue
		}

		entry := map[string]any{"id": id}
		if eb, ok := detailEnv.errorBody(); ok {
			entry["error"] = eb.Error
			entry["status_code"] = detailEnv.Status
			if eb.Detail != "" {
				entry["raw_response"] = eb.Detail
			} else if eb.Raw != "" {
				entry["raw_response"] = eb.Raw
			}
		}
		detailed = append(detailed, entry)

		s.logger.Warn("ghl.conversation_detail_failed",
			zap.String("conversation_id", id),
			zap.Int("status", detailEnv.Status))
	}

	return &Envelope{
		Status: http.StatusOK,
		Body: map[string]any{
			"conversations_summary":  conversations,
			"conversations_detailed": detailed,
		},
	}
}

// Profile aggregates a location's detail, its campaigns and its first 10
// contacts. Each leg is fetched independently; a failed leg contributes
// its error envelope inline instead of failing the profile.
func (s *Service) Profile(ctx context.Context, token, locationID string) *Envelope {
	location := s.client.Get(ctx, "location_detail", token, "", "/locations/"+locationID, nil)
	campaigns := s.client.Get(ctx, "campaigns", token, "", "/campaigns",
		url.Values{"locationId": {locationID}})
	contacts := s.client.Get(ctx, "contacts", token, "", "/contacts",
		url.Values{"locationId": {locationID}, "limit": {"10"}})

	return &Envelope{
		Status: http.StatusOK,
		Body: map[string]any{
			"location":  location.Body,
			"campaigns": campaigns.Body,
			"contacts":  contacts.Body,
		},
	}
}

// SearchLocationAndCampaigns searches locations, then lists campaigns for
// the first match. The campaigns call uses the location id resolved from
// the search result.
func (s *Service) SearchLocationAndCampaigns(ctx context.Context, token string, searchParams url.Values, campaignStatus string) *Envelope {
	searchEnv := s.client.Get(ctx, "locations_search", token, VersionDefault, "/locations/search", searchParams)
	if !searchEnv.OK() {
		return searchEnv
	}

	locations := sliceField(searchEnv.Body, "locations")
	if len(locations) == 0 {
		return &Envelope{
			Status: http.StatusNotFound,
			Body:   ErrorBody{Error: "no locations found matching the search criteria"},
		}
	}

	first := asMap(locations[0])
	locationID, _ := first["id"].(string)
	if locationID == "" {
		return &Envelope{
			Status: http.StatusBadGateway,
			Body:   ErrorBody{Error: "ghl locations_search returned a location without an id"},
		}
	}

	campaignParams := url.Values{"locationId": {locationID}}
	if campaignStatus != "" {
		campaignParams.Set("status", campaignStatus)
	}

	campaignsEnv := s.client.Get(ctx, "campaigns", token, VersionDefault, "/campaigns", campaignParams)
	if !campaignsEnv.OK() {
		return campaignsEnv
	}

	campaigns := sliceField(campaignsEnv.Body, "campaigns")

	return &Envelope{
		Status: http.StatusOK,
		Body: map[string]any{
			"searched_location":      first,
			"campaigns":              campaigns,
			"raw_campaigns_response": campaignsEnv.Body,
		},
	}
}

// asMap coerces a decoded JSON value into an object, empty when it is not one.
func asMap(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

// sliceField extracts an array field from a decoded JSON object, never nil.
func sliceField(v any, key string) []any {
	arr, ok := asMap(v)[key].([]any)
	if !ok {
		return []any{}
	}
	return arr
}
