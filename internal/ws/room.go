package ws

import "github.com/google/uuid"

// Room is the set of clients following one game.
type Room struct {
	ID      uuid.UUID
	clients map[*Client]struct{}
}

func newRoom(id uuid.UUID) *Room {
	return &Room{ID: id, clients: make(map[*Client]struct{})}
}

func (r *Room) add(c *Client) { r.clients[c] = struct{}{} }

// remove reports whether c was a member.
func (r *Room) remove(c *Client) bool {
	if _, ok := r.clients[c]; !ok {
		return false
	}
	delete(r.clients, c)
	return true
}

func (r *Room) empty() bool { return len(r.clients) == 0 }

// broadcast queues msg on every client and returns the ones whose buffer is
// full.
func (r *Room) broadcast(msg []byte) []*Client {
	var slow []*Client
	for c := range r.clients {
		select {
		case c.Send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	return slow
}
