package api

// CreateOodleRequest is the body of POST /api/oodles.
type CreateOodleRequest struct {
	Title   string `json:"title"`
	File    string `json:"file"`
	Content string `json:"content"`
}

// AppendMessageRequest is the body of POST /api/oodles/{file}/messages.
type AppendMessageRequest struct {
	Content string `json:"content"`
}

// EditMessageRequest is the body of PUT /api/oodles/{file}/messages/{id}.
type EditMessageRequest struct {
	Content string `json:"content"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
