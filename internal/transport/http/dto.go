package http

type CreateMessageRequest struct {
	Content string `json:"content"`
}

type DeleteMessageResponse struct {
	Status string `json:"status"`
}

// HeaderNextCursor — курсор следующей (более старой) страницы.
const HeaderNextCursor = "X-Next-Cursor"
