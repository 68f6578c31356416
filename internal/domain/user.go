package domain

type UserID string

// UserSummary — то, что чат знает о пользователе: снапшот профиля.
type UserSummary struct {
	ID        UserID  `json:"id"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatarUrl"`
}
