package store

// Account queries.
const (
	accountColumns = `id, ebay_user_id, display_name, active, owner_id, connected_at,
		needs_reconnect, COALESCE(reconnect_reason, ''), updated_at`

	queryUpsertAccount = `
		INSERT INTO accounts (ebay_user_id, display_name, owner_id, active)
		VALUES (@ebay_user_id, @display_name, @owner_id, @active)
		ON CONFLICT (ebay_user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			owner_id     = EXCLUDED.owner_id,
			active       = EXCLUDED.active,
			updated_at   = now()
		RETURNING id, connected_at, needs_reconnect, COALESCE(reconnect_reason, ''), updated_at`

	queryGetAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	queryListAccounts = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE ($1::boolean = false OR active)
		ORDER BY display_name, ebay_user_id`

	querySetAccountActive = `
		UPDATE accounts SET active = $2, updated_at = now() WHERE id = $1`

	queryMarkNeedsReconnect = `
		UPDATE accounts SET
			needs_reconnect  = true,
			reconnect_reason = $2,
			updated_at       = now()
		WHERE id = $1`

	queryClearNeedsReconnect = `
		UPDATE accounts SET
			needs_reconnect  = false,
			reconnect_reason = NULL,
			updated_at       = now()
		WHERE id = $1 AND needs_reconnect`

	queryCountNeedsReconnect = `
		SELECT COUNT(*) FROM accounts WHERE active AND needs_reconnect`
)

// Token queries.
const (
	tokenColumns = `id, account_id, environment, access_token, refresh_token,
		access_expires_at, refresh_expires_at, scopes, last_refreshed_at,
		last_refresh_error, last_refresh_error_code, updated_at`

	queryGetToken = `
		SELECT ` + tokenColumns + `
		FROM ebay_tokens
		WHERE account_id = $1 AND environment = $2`

	queryListTokens = `
		SELECT ` + tokenColumns + `
		FROM ebay_tokens
		ORDER BY account_id, environment`

	queryUpsertToken = `
		INSERT INTO ebay_tokens (
			account_id, environment, access_token, refresh_token,
			access_expires_at, refresh_expires_at, scopes, last_refreshed_at
		) VALUES (
			@account_id, @environment, @access_token, @refresh_token,
			@access_expires_at, @refresh_expires_at, @scopes, @last_refreshed_at
		)
		ON CONFLICT (account_id, environment) DO UPDATE SET
			access_token            = EXCLUDED.access_token,
			refresh_token           = EXCLUDED.refresh_token,
			access_expires_at       = EXCLUDED.access_expires_at,
			refresh_expires_at      = EXCLUDED.refresh_expires_at,
			scopes                  = EXCLUDED.scopes,
			last_refreshed_at       = EXCLUDED.last_refreshed_at,
			last_refresh_error      = NULL,
			last_refresh_error_code = NULL,
			updated_at              = now()
		RETURNING id, updated_at`

	queryUpdateTokenSecrets = `
		UPDATE ebay_tokens SET
			access_token  = $2,
			refresh_token = $3,
			updated_at    = now()
		WHERE id = $1`

	querySaveTokenRefresh = `
		UPDATE ebay_tokens SET
			access_token            = @access_token,
			access_expires_at       = @access_expires_at,
			refresh_token           = COALESCE(@refresh_token, refresh_token),
			refresh_expires_at      = COALESCE(@refresh_expires_at, refresh_expires_at),
			last_refreshed_at       = @refreshed_at,
			last_refresh_error      = NULL,
			last_refresh_error_code = NULL,
			updated_at              = now()
		WHERE id = @id
		RETURNING account_id`

	querySaveTokenRefreshError = `
		UPDATE ebay_tokens SET
			last_refresh_error      = $3,
			last_refresh_error_code = $2,
			updated_at              = now()
		WHERE id = $1`

	queryListRefreshCandidates = `
		SELECT t.id, t.account_id, t.environment, t.access_token, t.refresh_token,
			t.access_expires_at, t.refresh_expires_at, t.scopes, t.last_refreshed_at,
			t.last_refresh_error, t.last_refresh_error_code, t.updated_at
		FROM ebay_tokens t
		JOIN accounts a ON a.id = t.account_id
		WHERE a.active
			AND t.environment = $1
			AND (t.last_refresh_error_code IS NULL OR NOT (t.last_refresh_error_code = ANY($3)))
			AND (
				t.access_expires_at IS NULL
				OR t.access_expires_at <= $2
				OR t.last_refresh_error IS NOT NULL
			)
		ORDER BY t.access_expires_at NULLS FIRST`
)

// Token refresh log queries.
const (
	queryInsertTokenRefreshLog = `
		INSERT INTO token_refresh_logs (
			account_id, environment, api_family, triggered_by, started_at, finished_at,
			success, error_code, error_message, old_expires_at, new_expires_at, token_hash
		) VALUES (
			@account_id, @environment, @api_family, @triggered_by, @started_at, @finished_at,
			@success, @error_code, @error_message, @old_expires_at, @new_expires_at, @token_hash
		)
		RETURNING id`

	queryListTokenRefreshLogs = `
		SELECT id, account_id, environment, api_family, triggered_by, started_at,
			finished_at, success, error_code, error_message, old_expires_at,
			new_expires_at, token_hash
		FROM token_refresh_logs
		WHERE account_id = $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2`

	queryDeleteTokenRefreshLogsBefore = `
		DELETE FROM token_refresh_logs WHERE finished_at < $1`
)

// Sync state queries.
const (
	syncStateColumns = `account_id, api_family, enabled, backfill_completed, cursor_type,
		cursor_value, last_run_at, last_error, metadata, created_at, updated_at`

	queryGetSyncState = `
		SELECT ` + syncStateColumns + `
		FROM sync_states
		WHERE account_id = $1 AND api_family = $2`

	queryListSyncStates = `
		SELECT ` + syncStateColumns + `
		FROM sync_states
		WHERE account_id = $1
		ORDER BY api_family`

	queryUpsertSyncEnabled = `
		INSERT INTO sync_states (account_id, api_family, enabled)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, api_family) DO UPDATE SET
			enabled    = EXCLUDED.enabled,
			updated_at = now()`

	queryEnsureSyncState = `
		INSERT INTO sync_states (account_id, api_family)
		VALUES ($1, $2)
		ON CONFLICT (account_id, api_family) DO NOTHING`

	queryLockSyncState = `
		SELECT s.enabled, s.last_run_at, a.active
		FROM sync_states s
		JOIN accounts a ON a.id = s.account_id
		WHERE s.account_id = $1 AND s.api_family = $2
		FOR UPDATE OF s`

	queryUpdateSyncStateAfterRun = `
		UPDATE sync_states SET
			last_run_at        = @finished_at,
			last_error         = @last_error,
			cursor_type        = COALESCE(@cursor_type, cursor_type),
			cursor_value       = COALESCE(@cursor_value, cursor_value),
			backfill_completed = backfill_completed OR @backfill_completed,
			updated_at         = now()
		WHERE account_id = @account_id AND api_family = @api_family`
)

// Worker run queries.
const (
	queryMarkStaleRunsForPair = `
		UPDATE worker_runs SET
			status      = 'stale',
			finished_at = $4,
			error_text  = 'heartbeat timeout'
		WHERE account_id = $1 AND api_family = $2
			AND status = 'running' AND heartbeat_at < $3`

	queryHasRunningRun = `
		SELECT EXISTS(
			SELECT 1 FROM worker_runs
			WHERE account_id = $1 AND api_family = $2 AND status = 'running'
		)`

	queryInsertRunningRun = `
		INSERT INTO worker_runs (account_id, api_family, status, holder, started_at, heartbeat_at)
		VALUES ($1, $2, 'running', $3, $4, $4)
		ON CONFLICT (account_id, api_family) WHERE status = 'running' DO NOTHING
		RETURNING id, started_at, heartbeat_at`

	queryHeartbeatRun = `
		UPDATE worker_runs SET heartbeat_at = $2
		WHERE id = $1 AND status = 'running'`

	queryFinishRun = `
		UPDATE worker_runs SET
			status      = $2,
			finished_at = $3,
			summary     = $4,
			error_text  = NULLIF($5, '')
		WHERE id = $1 AND status = 'running'
		RETURNING account_id, api_family`

	queryListDueWork = `
		SELECT a.id, f.family
		FROM accounts a
		CROSS JOIN unnest($1::text[]) AS f(family)
		LEFT JOIN sync_states s
			ON s.account_id = a.id AND s.api_family = f.family
		WHERE a.active
			AND NOT a.needs_reconnect
			AND (s.account_id IS NULL OR s.enabled)
			AND (s.last_run_at IS NULL OR s.last_run_at <= $2)
			AND NOT EXISTS (
				SELECT 1 FROM worker_runs r
				WHERE r.account_id = a.id
					AND r.api_family = f.family
					AND r.status = 'running'
					AND r.heartbeat_at >= $3
			)
		ORDER BY s.last_run_at NULLS FIRST, a.id, f.family`

	queryMarkStaleRuns = `
		UPDATE worker_runs SET
			status      = 'stale',
			finished_at = $2,
			error_text  = 'heartbeat timeout'
		WHERE status = 'running' AND heartbeat_at < $1`

	queryDeleteWorkerRunsBefore = `
		DELETE FROM worker_runs
		WHERE status <> 'running' AND finished_at < $1`
)

// Synced record queries.
const (
	queryUpsertOrder = `
		INSERT INTO ebay_orders (
			account_id, order_id, buyer_username, fulfillment_status, payment_status,
			total, currency, line_item_count, created_at, last_modified_at, raw
		) VALUES (
			@account_id, @order_id, @buyer_username, @fulfillment_status, @payment_status,
			@total, @currency, @line_item_count, @created_at, @last_modified_at, @raw
		)
		ON CONFLICT (account_id, order_id) DO UPDATE SET
			buyer_username     = EXCLUDED.buyer_username,
			fulfillment_status = EXCLUDED.fulfillment_status,
			payment_status     = EXCLUDED.payment_status,
			total              = EXCLUDED.total,
			currency           = EXCLUDED.currency,
			line_item_count    = EXCLUDED.line_item_count,
			last_modified_at   = EXCLUDED.last_modified_at,
			raw                = EXCLUDED.raw,
			synced_at          = now()`

	queryUpsertFinanceTransaction = `
		INSERT INTO ebay_finance_transactions (
			account_id, transaction_id, transaction_type, transaction_status, order_id,
			amount, currency, booking_entry, transaction_date, raw
		) VALUES (
			@account_id, @transaction_id, @transaction_type, @transaction_status, @order_id,
			@amount, @currency, @booking_entry, @transaction_date, @raw
		)
		ON CONFLICT (account_id, transaction_id) DO UPDATE SET
			transaction_status = EXCLUDED.transaction_status,
			amount             = EXCLUDED.amount,
			raw                = EXCLUDED.raw,
			synced_at          = now()`
)

// Scheduler queries.
const (
	queryInsertJobRun = `
		INSERT INTO job_runs (job_name)
		VALUES ($1)
		RETURNING id`

	queryCompleteJobRun = `
		UPDATE job_runs SET
			completed_at  = now(),
			status        = $2,
			error_text    = NULLIF($3, ''),
			rows_affected = $4
		WHERE id = $1`

	queryListJobRuns = `
		SELECT id, job_name, started_at, completed_at, status,
			COALESCE(error_text, ''), rows_affected
		FROM job_runs
		WHERE job_name = $1
		ORDER BY started_at DESC
		LIMIT $2`

	queryListLatestJobRuns = `
		SELECT DISTINCT ON (job_name)
			id, job_name, started_at, completed_at, status,
			COALESCE(error_text, ''), rows_affected
		FROM job_runs
		ORDER BY job_name, started_at DESC`

	queryMarkStaleJobRunsCrashed = `
		UPDATE job_runs SET
			status       = 'crashed',
			completed_at = now()
		WHERE status = 'running' AND started_at < $1`

	queryDeleteOldJobRuns = `
		DELETE FROM job_runs WHERE started_at < now() - interval '30 days'`
)
