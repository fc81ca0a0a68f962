package websocket

import (
	"mingle-server/core"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Wire event names shared with the browser client.
const (
	EventCreated        = "create"
	EventChatError      = "chatError"
	EventChatMatched    = "chatMatched"
	EventHangup         = "hangup"
	EventCloseChat      = "close-chat"
	EventDeliveryFailed = "delivery-failed"
	EventError          = "error"
)

const (
	waitingNotice     = "Waiting for another user to join..."
	noSessionNotice   = "no active session"
	noInterestsNotice = "no interests declared"
)

// Emitter is the part of *socketio.Socket the engine needs to notify a
// connection. Tests substitute a recorder.
type Emitter interface {
	Emit(ev string, args ...any) error
}

type connection struct {
	id        string
	emitter   Emitter
	interests []string
	pairingID string

	// pending marks a connection that asked for a match while no candidate
	// shared an interest. Pending requests are retried whenever the pool
	// changes, never on unchanged state.
	pending bool
}

type pairing struct {
	id      string
	members [2]string
}

// Engine owns every piece of pairing state: the connection registry, the
// waiting pool and the active pairings. All mutation is serialized behind a
// single mutex so a successful match removes exactly two pool entries with
// no third connection able to observe either in between.
type Engine struct {
	mu       sync.Mutex
	conns    map[string]*connection
	waiting  []string // pool insertion order, oldest first
	pooled   map[string]bool
	pairings map[string]*pairing
}

func NewEngine() *Engine {
	return &Engine{
		conns:    make(map[string]*connection),
		pooled:   make(map[string]bool),
		pairings: make(map[string]*pairing),
	}
}

// Register tracks a new connection. The transport assigns the id.
func (e *Engine) Register(id string, emitter Emitter) {
	e.mu.Lock()
	e.conns[id] = &connection{id: id, emitter: emitter}
	e.mu.Unlock()

	logrus.WithField("conn_id", id).Info("Connection registered")
}

// DeclareInterests overwrites the connection's interest set and makes it
// eligible for matching. A connection already waiting keeps its original
// pool position; only its interests change.
func (e *Engine) DeclareInterests(id string, interests []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	conn, ok := e.conns[id]
	if !ok {
		return
	}
	conn.interests = interests

	if conn.pairingID == "" && !e.pooled[id] {
		e.waiting = append(e.waiting, id)
		e.pooled[id] = true
	}

	logrus.WithFields(logrus.Fields{
		"conn_id":   id,
		"interests": interests,
		"pool_size": len(e.waiting),
	}).Debug("Interests declared")

	// The pool changed; pending requests may now have a candidate.
	e.retryPending()
}

// RequestMatch runs one matching attempt for the caller. With fewer than two
// pool entries, or no candidate sharing an interest, the caller is told to
// wait and stays pooled with a pending request; the attempt is repeated on
// the next pool change.
func (e *Engine) RequestMatch(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	conn, ok := e.conns[id]
	if !ok {
		return
	}
	if !e.pooled[id] {
		emit(conn, EventChatError, noInterestsNotice)
		return
	}

	if len(e.waiting) < 2 {
		conn.pending = true
		emit(conn, EventChatError, waitingNotice)
		return
	}

	if !e.matchLocked(conn) {
		conn.pending = true
		emit(conn, EventChatError, waitingNotice)
	}
}

// matchLocked scans the pool oldest-first for the earliest-inserted entry
// whose interests intersect the caller's, and on success creates the
// pairing. The caller is skipped during the scan rather than removed up
// front, so a failed attempt leaves the pool untouched.
func (e *Engine) matchLocked(conn *connection) bool {
	for _, otherID := range e.waiting {
		if otherID == conn.id {
			continue
		}
		other := e.conns[otherID]
		if other == nil || !intersects(conn.interests, other.interests) {
			continue
		}

		e.removeFromPool(conn.id)
		e.removeFromPool(otherID)
		conn.pending = false
		other.pending = false

		p := &pairing{
			id:      ulid.Make().String(),
			members: [2]string{conn.id, otherID},
		}
		e.pairings[p.id] = p
		conn.pairingID = p.id
		other.pairingID = p.id

		logrus.WithFields(logrus.Fields{
			"pairing_id": p.id,
			"members":    p.members,
		}).Info("Pairing created")

		emit(conn, EventChatMatched, map[string]any{"roomId": p.id, "to": otherID})
		emit(other, EventChatMatched, map[string]any{"roomId": p.id, "to": conn.id})
		return true
	}
	return false
}

// retryPending re-attempts matching for connections with an unserved match
// request, oldest-waiting first. Called under the lock after every pool
// mutation.
func (e *Engine) retryPending() {
	if len(e.waiting) < 2 {
		return
	}

	snapshot := make([]string, len(e.waiting))
	copy(snapshot, e.waiting)

	for _, id := range snapshot {
		if !e.pooled[id] {
			continue // matched by an earlier iteration
		}
		conn := e.conns[id]
		if conn == nil || !conn.pending {
			continue
		}
		e.matchLocked(conn)
	}
}

// ForwardSignal delivers a negotiation payload to an explicitly named
// target connection, attaching the sender's id. Sender and target need not
// share a pairing. An unknown target produces a delivery-failure ack
// instead of a silent drop.
func (e *Engine) ForwardSignal(senderID, targetID, outEvent, payloadKey string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sender, ok := e.conns[senderID]
	if !ok {
		return
	}

	target, ok := e.conns[targetID]
	if !ok {
		logrus.WithFields(logrus.Fields{
			"conn_id": senderID,
			"target":  targetID,
			"event":   outEvent,
		}).Warn("Signal target not connected")
		emit(sender, EventDeliveryFailed, map[string]any{
			"event":          outEvent,
			"targetSocketID": targetID,
		})
		return
	}

	emit(target, outEvent, map[string]any{
		"sourceSocketID": senderID,
		payloadKey:       payload,
	})
}

// RelayEvent broadcasts a named event to the other occupant of the sender's
// pairing, and only that occupant. The payload, if any, passes through
// untouched. A sender with no active pairing gets a "no active session"
// error rather than a silent success.
func (e *Engine) RelayEvent(senderID, event string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.relayLocked(senderID, event, args...)
}

func (e *Engine) relayLocked(senderID, event string, args ...any) {
	sender, ok := e.conns[senderID]
	if !ok {
		return
	}

	peer := e.peerLocked(sender)
	if peer == nil {
		emit(sender, EventChatError, noSessionNotice)
		return
	}

	logrus.WithFields(logrus.Fields{
		"conn_id": senderID,
		"peer":    peer.id,
		"event":   event,
	}).Debug("Relaying event")
	emit(peer, event, args...)
}

// CloseChat relays the close signal to the peer, then tears the pairing
// down on both sides.
func (e *Engine) CloseChat(senderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.relayLocked(senderID, EventCloseChat)
	if sender, ok := e.conns[senderID]; ok {
		e.teardownLocked(sender)
	}
}

// Disconnect purges a connection: pool removal, terminal hangup to the
// pairing peer, two-sided pairing teardown, registry removal.
func (e *Engine) Disconnect(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	conn, ok := e.conns[id]
	if !ok {
		return
	}

	e.removeFromPool(id)

	if peer := e.peerLocked(conn); peer != nil {
		emit(peer, EventHangup)
	}
	e.teardownLocked(conn)

	delete(e.conns, id)
	logrus.WithField("conn_id", id).Info("Connection removed")
}

// teardownLocked clears the pairing references of both members. Clearing
// only the acting side would leave the peer believing it still occupies a
// dead pairing.
func (e *Engine) teardownLocked(conn *connection) {
	if conn.pairingID == "" {
		return
	}

	p := e.pairings[conn.pairingID]
	delete(e.pairings, conn.pairingID)
	conn.pairingID = ""

	if p == nil {
		return
	}
	for _, memberID := range p.members {
		if member, ok := e.conns[memberID]; ok {
			member.pairingID = ""
		}
	}
	logrus.WithField("pairing_id", p.id).Info("Pairing closed")
}

// CurrentPairing reports the pairing id the connection occupies, if any.
func (e *Engine) CurrentPairing(id string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	conn, ok := e.conns[id]
	if !ok || conn.pairingID == "" {
		return "", false
	}
	return conn.pairingID, true
}

// Pairings lists the active pairings for the HTTP API.
func (e *Engine) Pairings() []core.Pairing {
	e.mu.Lock()
	defer e.mu.Unlock()

	pairings := make([]core.Pairing, 0, len(e.pairings))
	for _, p := range e.pairings {
		pairings = append(pairings, core.Pairing{
			ID:      p.id,
			Members: []string{p.members[0], p.members[1]},
		})
	}
	return pairings
}

// WaitingCount reports the waiting pool size.
func (e *Engine) WaitingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.waiting)
}

func (e *Engine) peerLocked(conn *connection) *connection {
	if conn.pairingID == "" {
		return nil
	}
	p := e.pairings[conn.pairingID]
	if p == nil {
		return nil
	}
	for _, memberID := range p.members {
		if memberID != conn.id {
			return e.conns[memberID]
		}
	}
	return nil
}

func (e *Engine) removeFromPool(id string) {
	if !e.pooled[id] {
		return
	}
	delete(e.pooled, id)
	for i, waitingID := range e.waiting {
		if waitingID == id {
			e.waiting = append(e.waiting[:i], e.waiting[i+1:]...)
			break
		}
	}
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, interest := range a {
		seen[interest] = true
	}
	for _, interest := range b {
		if seen[interest] {
			return true
		}
	}
	return false
}

func emit(conn *connection, event string, args ...any) {
	if err := conn.emitter.Emit(event, args...); err != nil {
		logrus.WithFields(logrus.Fields{
			"conn_id": conn.id,
			"event":   event,
			"error":   err,
		}).Error("Failed to emit event")
	}
}
