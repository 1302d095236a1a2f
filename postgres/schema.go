package postgres

import "github.com/jmoiron/sqlx"

func createTables(db *sqlx.DB) error {
	var accountSchema = `
	CREATE TABLE IF NOT EXISTS account (
	id uuid DEFAULT uuid_generate_v4() PRIMARY KEY,
	first_name text NOT NULL,
	last_name text NOT NULL,
	email text NOT NULL UNIQUE,
	balance NUMERIC(12, 2) DEFAULT 0 NOT NULL,
	created_at timestamp DEFAULT now(),
	updated_at timestamp DEFAULT now()
	                         )
	`
	_, err := db.Exec(accountSchema)
	if err != nil {
		return err
	}

	var transactionSchema = `
	CREATE TABLE IF NOT EXISTS transaction (
	id uuid DEFAULT uuid_generate_v4() PRIMARY KEY,
	sender_id uuid REFERENCES account (id) ON DELETE SET NULL,
	receiver_id uuid REFERENCES account (id) ON DELETE SET NULL,
	amount NUMERIC(12, 2) NOT NULL CHECK (amount > 0),
	description text,
	type text NOT NULL CHECK (type IN ('transfer', 'deposit', 'withdraw', 'reverse')),
	status text DEFAULT 'completed' NOT NULL CHECK (status IN ('completed', 'reversed')),
	created_at timestamp DEFAULT now(),
	updated_at timestamp DEFAULT now()
	                         )
	`
	_, err = db.Exec(transactionSchema)
	if err != nil {
		return err
	}
	return nil
}
