package postgres

// SQL for the snapshot archive tables. Wei amounts are NUMERIC(78,0)
// so a full uint256 round-trips without loss; addresses are stored as
// lowercase hex text.

const (
	// queryUpsertEventSnapshot archives one event row. Re-fetching the
	// same event replaces the previous snapshot.
	queryUpsertEventSnapshot = `
		INSERT INTO event_snapshots (
			chain_id, event_id, name, description, event_date, venue,
			ticket_price_wei, max_supply, current_supply, organizer, status,
			created_at, total_revenue_wei, available_revenue_wei, tickets_sold,
			archived_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (chain_id, event_id) DO UPDATE SET
			name                  = EXCLUDED.name,
			description           = EXCLUDED.description,
			event_date            = EXCLUDED.event_date,
			venue                 = EXCLUDED.venue,
			ticket_price_wei      = EXCLUDED.ticket_price_wei,
			max_supply            = EXCLUDED.max_supply,
			current_supply        = EXCLUDED.current_supply,
			organizer             = EXCLUDED.organizer,
			status                = EXCLUDED.status,
			created_at            = EXCLUDED.created_at,
			total_revenue_wei     = EXCLUDED.total_revenue_wei,
			available_revenue_wei = EXCLUDED.available_revenue_wei,
			tickets_sold          = EXCLUDED.tickets_sold,
			archived_at           = EXCLUDED.archived_at
	`

	// queryUpsertTicketSnapshot archives one ticket row keyed by token id.
	// The owner column tracks the latest observed holder, so a transfer
	// seen on refetch moves the row to the new owner.
	queryUpsertTicketSnapshot = `
		INSERT INTO ticket_snapshots (
			chain_id, token_id, event_id, ticket_number, purchase_price_wei,
			purchase_date, original_buyer, current_owner,
			event_name, event_date, event_venue, archived_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (chain_id, token_id) DO UPDATE SET
			event_id           = EXCLUDED.event_id,
			ticket_number      = EXCLUDED.ticket_number,
			purchase_price_wei = EXCLUDED.purchase_price_wei,
			purchase_date      = EXCLUDED.purchase_date,
			original_buyer     = EXCLUDED.original_buyer,
			current_owner      = EXCLUDED.current_owner,
			event_name         = EXCLUDED.event_name,
			event_date         = EXCLUDED.event_date,
			event_venue        = EXCLUDED.event_venue,
			archived_at        = EXCLUDED.archived_at
	`

	queryRetrieveEventSnapshots = `
		SELECT
			event_id, name, description, event_date, venue,
			ticket_price_wei, max_supply, current_supply, organizer, status,
			created_at, total_revenue_wei, available_revenue_wei, tickets_sold
		FROM event_snapshots
		WHERE chain_id = $1
		ORDER BY event_id ASC
		LIMIT $2
	`

	queryRetrieveTicketSnapshots = `
		SELECT
			token_id, event_id, ticket_number, purchase_price_wei,
			purchase_date, original_buyer, current_owner,
			event_name, event_date, event_venue
		FROM ticket_snapshots
		WHERE chain_id = $1 AND current_owner = $2
		ORDER BY token_id ASC
		LIMIT $3
	`
)
