package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Activity is the payload for LogActivity.
type Activity struct {
	Type     string             `json:"type"`
	LogID    string             `json:"log_id,omitempty"`
	LogModel string             `json:"log_model,omitempty"`
	Data     map[string]float64 `json:"data,omitempty"`
}

// Result mirrors the public JSON surface of the reward pipeline outcome.
type Result struct {
	CoinsEarned      int64  `json:"coins_earned"`
	TotalCoinsEarned int64  `json:"total_coins_earned"`
	TotalCoins       int64  `json:"total_coins"`
	Streak           Streak `json:"streak"`
	Status           string `json:"status"`
	Reason           string `json:"reason,omitempty"`
}

// Streak reports streak state after a reward call.
type Streak struct {
	Current   int  `json:"current"`
	Longest   int  `json:"longest"`
	IsNew     bool `json:"is_new"`
	Milestone int  `json:"milestone,omitempty"`
}

// Summary mirrors the user summary read model.
type Summary struct {
	NovaCoins        int64  `json:"nova_coins"`
	Level            int    `json:"level"`
	LevelProgress    int    `json:"level_progress"`
	CoinsToNextLevel int64  `json:"coins_to_next_level"`
	Streak           Streak `json:"streak"`
	QuestsCompleted  int    `json:"quests_completed"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("request failed: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
