package model

// CaptchaResponse is the login challenge: an opaque key plus an SVG image.
// A challenge is single-use; a failed submission needs a fresh one.
type CaptchaResponse struct {
	Key     string `json:"key"`
	Content string `json:"content"`
}

type LoginRequest struct {
	CKey     string `json:"ckey"`
	CValue   string `json:"cvalue"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// ListResponse is one page of the invoice listing. State is the opaque
// cursor for the next page; empty means last page.
type ListResponse struct {
	Total int          `json:"total"`
	State string       `json:"state"`
	Datas []RawInvoice `json:"datas"`
}
