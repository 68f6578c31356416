package postgres

const (
	queryInsertMessage = `
		INSERT INTO messages (id, sender_id, receiver_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, sender_id, receiver_id, content, created_at, seq;
	`
	queryGetMessage = `
		SELECT id, sender_id, receiver_id, content, created_at, seq
		FROM messages
		WHERE id = $1;
	`
	// Диалог — явная дизъюнкция двух направлений, без канонического ключа.
	// При $1 = $2 обе ветки совпадают и дают сообщения самому себе.
	queryListBetween = `
		SELECT id, sender_id, receiver_id, content, created_at, seq
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, seq ASC;
	`
	// Страница: самые свежие $4 сообщений строго раньше курсора ($3, $5).
	queryListBetweenPage = `
		SELECT id, sender_id, receiver_id, content, created_at, seq
		FROM messages
		WHERE ((sender_id = $1 AND receiver_id = $2)
		    OR (sender_id = $2 AND receiver_id = $1))
		  AND (
		    $3::timestamptz IS NULL
		    OR created_at < $3
		    OR (created_at = $3 AND seq < $5)
		  )
		ORDER BY created_at DESC, seq DESC
		LIMIT $4;
	`
	queryDeleteOwnMessage = `DELETE FROM messages WHERE id = $1 AND sender_id = $2;`

	queryGetUserSummary = `
		SELECT id, username, avatar_url
		FROM users
		WHERE id = $1;
	`
	queryListUserSummaries = `
		SELECT id, username, avatar_url
		FROM users
		ORDER BY username ASC, id ASC;
	`
)
