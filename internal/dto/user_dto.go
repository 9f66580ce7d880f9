package dto

import "github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store"

type UpdateProfileRequest struct {
	Username       *string        `json:"username"`
	Email          *string        `json:"email"`
	AvatarURL      *string        `json:"avatar_url"`
	AvatarUpgrades map[string]any `json:"avatar_upgrades"`
}

func (r *UpdateProfileRequest) Validate() error {
	var v ValidationErrors
	if r.Username != nil && !usernamePattern.MatchString(*r.Username) {
		v.Add("username must be 3-50 letters, digits or underscores")
	}
	if r.Email != nil && !validEmail(*r.Email) {
		v.Add("email is not a valid address")
	}
	if r.AvatarURL != nil && (len(*r.AvatarURL) > 255 || !validURL(*r.AvatarURL)) {
		v.Add("avatar_url must be an http(s) URL of at most 255 characters")
	}
	if r.Username == nil && r.Email == nil && r.AvatarURL == nil && r.AvatarUpgrades == nil {
		v.Add("no fields to update")
	}
	return v.Err()
}

type LeaderboardQuery struct {
	SortBy  string `query:"sort_by"`
	Page    int    `query:"page"`
	PerPage int    `query:"per_page"`
}

func (q *LeaderboardQuery) Validate() error {
	var v ValidationErrors
	if q.SortBy == "" {
		q.SortBy = string(store.SortByLevel)
	}
	switch store.LeaderboardSort(q.SortBy) {
	case store.SortByLevel, store.SortByExperience, store.SortByBalance:
	default:
		v.Add("sort_by must be one of level, experience, pi_balance")
	}
	checkPage(&v, q.Page, q.PerPage)
	return v.Err()
}
