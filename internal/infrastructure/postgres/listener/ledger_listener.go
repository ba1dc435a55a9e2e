package listener

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/lib/pq"

	"centime/internal/domain/budget"
	"centime/internal/domain/family"
)

const (
	channelName       = "ledger_changed"
	reconnectInterval = 5 * time.Second
)

// LedgerNotification is the payload a database trigger NOTIFYs whenever a
// transaction row changes outside the API path (bulk imports, manual SQL
// corrections). The listener brings the affected budget counters back in
// line with the transaction source of truth.
type LedgerNotification struct {
	TransactionID string  `json:"transaction_id"`
	UserID        int64   `json:"user_id"`
	CategoryID    *string `json:"category_id"`
	Date          string  `json:"date"`
	TxType        string  `json:"type"`
}

// LedgerListener listens for PostgreSQL notifications about out-of-band
// transaction changes and recomputes the budgets they touch.
type LedgerListener struct {
	connStr    string
	budgets    *budget.Service
	families   family.Repository
	shutdownCh chan struct{}
	done       chan struct{}
}

// NewLedgerListener creates a new listener for ledger change notifications
func NewLedgerListener(connStr string, budgets *budget.Service, families family.Repository) *LedgerListener {
	return &LedgerListener{
		connStr:    connStr,
		budgets:    budgets,
		families:   families,
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins listening for notifications in a background goroutine
func (l *LedgerListener) Start(ctx context.Context) {
	go l.listen(ctx)
	log.Println("Ledger change listener started")
}

// Stop gracefully shuts down the listener
func (l *LedgerListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	log.Println("Ledger change listener stopped")
}

func (l *LedgerListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		// Wait before reconnecting
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			log.Println("Reconnecting to PostgreSQL for notifications...")
		}
	}
}

func (l *LedgerListener) connectAndListen(ctx context.Context) {
	// Create a dedicated listener connection
	listener := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("Listener error: %v", err)
		}
		switch ev {
		case pq.ListenerEventConnected:
			log.Println("Connected to PostgreSQL notification channel")
		case pq.ListenerEventDisconnected:
			log.Println("Disconnected from PostgreSQL notification channel")
		case pq.ListenerEventReconnected:
			log.Println("Reconnected to PostgreSQL notification channel")
		case pq.ListenerEventConnectionAttemptFailed:
			log.Printf("Connection attempt failed: %v", err)
		}
	})

	defer listener.Close()

	if err := listener.Listen(channelName); err != nil {
		log.Printf("Failed to listen on channel %s: %v", channelName, err)
		return
	}

	log.Printf("Listening on channel: %s", channelName)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case notification := <-listener.Notify:
			if notification == nil {
				// Connection lost, break to reconnect
				return
			}
			l.handleNotification(ctx, notification)
		case <-time.After(90 * time.Second):
			// Ping to keep connection alive
			go func() {
				if err := listener.Ping(); err != nil {
					log.Printf("Listener ping failed: %v", err)
				}
			}()
		}
	}
}

func (l *LedgerListener) handleNotification(ctx context.Context, notification *pq.Notification) {
	var payload LedgerNotification
	if err := json.Unmarshal([]byte(notification.Extra), &payload); err != nil {
		log.Printf("Failed to parse notification payload: %v", err)
		return
	}

	// Use background context since parent ctx may be cancelled during shutdown
	go l.refreshBudgets(context.Background(), payload)
}

func (l *LedgerListener) refreshBudgets(ctx context.Context, payload LedgerNotification) {
	date, err := time.Parse(time.RFC3339, payload.Date)
	if err != nil {
		log.Printf("Failed to parse transaction date %q: %v", payload.Date, err)
		return
	}

	familyID, err := l.families.FamilyIDForUser(ctx, payload.UserID)
	if err != nil {
		log.Printf("Failed to resolve family for user %d: %v", payload.UserID, err)
		return
	}

	if err := l.budgets.RefreshForTransaction(ctx, payload.UserID, familyID, payload.CategoryID, date); err != nil {
		log.Printf("Failed to refresh budgets for transaction %s: %v", payload.TransactionID, err)
		return
	}

	log.Printf("Refreshed budgets after out-of-band change to transaction %s", payload.TransactionID)
}
