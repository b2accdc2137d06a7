package request

// CreatePlayerRequest is the request body for creating an account from the admin API
type CreatePlayerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdjustRankRequest is the request body for changing a player's rank
type AdjustRankRequest struct {
	Delta int `json:"delta"`
}
