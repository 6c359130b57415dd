package audit

const ddlAuditLog = `
CREATE TABLE IF NOT EXISTS transcribe_audit_log (
    id           BIGSERIAL    PRIMARY KEY,
    occurred_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    model_key    TEXT         NOT NULL,
    outcome      TEXT         NOT NULL,
    duration_ms  BIGINT       NOT NULL DEFAULT 0,
    detail       TEXT         NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_transcribe_audit_log_occurred_at
    ON transcribe_audit_log (occurred_at);

CREATE INDEX IF NOT EXISTS idx_transcribe_audit_log_model_key
    ON transcribe_audit_log (model_key);
`
