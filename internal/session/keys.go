package session

import "fmt"

const indexKey = "sessions/index"

func metaKey(id string) string {
	return "sessions/" + id
}

func turnKey(id string, seq int) string {
	return fmt.Sprintf("sessions/%s/turns/%08d", id, seq)
}
