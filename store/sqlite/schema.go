package sqlite

// schemaDDL creates the three tables and the derived views. Column types
// are declared TEXT for dates so the driver hands them back as strings.
const schemaDDL = `
	-- Catalog (natural key: name, BINARY collation)
	CREATE TABLE IF NOT EXISTS products (
		name            TEXT PRIMARY KEY NOT NULL CHECK (length(name) > 0),
		als_item        TEXT,
		unit_price      REAL NOT NULL DEFAULT 0 CHECK (unit_price >= 0),
		unit_of_measure TEXT NOT NULL,
		description     TEXT NOT NULL,
		station         TEXT NOT NULL,
		is_consumable   INTEGER NOT NULL CHECK (is_consumable IN (0, 1)),
		alert           INTEGER NOT NULL DEFAULT 0 CHECK (alert >= 0),
		vendor_item     TEXT,
		vendor          TEXT,
		po              TEXT
	);

	-- One row per received lot of a consumable
	CREATE TABLE IF NOT EXISTS consumable_lots (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		product_name      TEXT NOT NULL
			REFERENCES products(name) ON UPDATE RESTRICT ON DELETE RESTRICT,
		lot               TEXT NOT NULL,
		received_date     TEXT NOT NULL,
		received_initials TEXT NOT NULL CHECK (length(received_initials) BETWEEN 2 AND 5),
		expiry_date       TEXT NOT NULL,
		opened_date       TEXT,
		opened_initials   TEXT CHECK (opened_initials IS NULL OR length(opened_initials) BETWEEN 2 AND 5),
		finished_date     TEXT,
		finished_initials TEXT CHECK (finished_initials IS NULL OR length(finished_initials) BETWEEN 2 AND 5),
		created_at        TEXT NOT NULL,
		CHECK ((opened_date IS NULL) = (opened_initials IS NULL)),
		CHECK ((finished_date IS NULL) = (finished_initials IS NULL)),
		CHECK (finished_date IS NULL OR opened_date IS NOT NULL)
	);

	CREATE INDEX IF NOT EXISTS idx_lots_product
		ON consumable_lots(product_name, finished_date);

	-- Append-only ledger for non-consumables
	CREATE TABLE IF NOT EXISTS non_consumable_events (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		product_name TEXT NOT NULL
			REFERENCES products(name) ON UPDATE RESTRICT ON DELETE RESTRICT,
		quantity     INTEGER NOT NULL CHECK (quantity > 0),
		date         TEXT NOT NULL,
		initials     TEXT NOT NULL CHECK (length(initials) BETWEEN 2 AND 5),
		action       TEXT NOT NULL CHECK (action IN ('Received', 'Opened')),
		created_at   TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_product
		ON non_consumable_events(product_name, id);

	-- Derived views: computed on read, never stored
	CREATE VIEW IF NOT EXISTS stock_levels AS
		SELECT p.name AS product_name,
		       'consumable' AS kind,
		       p.unit_of_measure AS unit_of_measure,
		       p.station AS station,
		       p.alert AS alert,
		       (SELECT COUNT(*) FROM consumable_lots l
		         WHERE l.product_name = p.name AND l.finished_date IS NULL) AS available
		  FROM products p
		 WHERE p.is_consumable = 1
		UNION ALL
		SELECT p.name,
		       'non_consumable',
		       p.unit_of_measure,
		       p.station,
		       p.alert,
		       (SELECT COALESCE(SUM(CASE e.action WHEN 'Received' THEN e.quantity ELSE -e.quantity END), 0)
		          FROM non_consumable_events e
		         WHERE e.product_name = p.name)
		  FROM products p
		 WHERE p.is_consumable = 0;

	CREATE VIEW IF NOT EXISTS available_consumables AS
		SELECT * FROM stock_levels WHERE kind = 'consumable';

	CREATE VIEW IF NOT EXISTS available_non_consumables AS
		SELECT * FROM stock_levels WHERE kind = 'non_consumable';

	CREATE VIEW IF NOT EXISTS out_of_stock_consumables AS
		SELECT * FROM stock_levels WHERE kind = 'consumable' AND available <= 0;

	CREATE VIEW IF NOT EXISTS out_of_stock_non_consumables AS
		SELECT * FROM stock_levels WHERE kind = 'non_consumable' AND available <= 0;

	CREATE VIEW IF NOT EXISTS out_of_stock AS
		SELECT * FROM stock_levels WHERE available <= 0;

	CREATE VIEW IF NOT EXISTS reorder_list AS
		SELECT * FROM stock_levels WHERE available <= alert;
`

// resetOrder deletes children before parents.
var resetOrder = []string{"consumable_lots", "non_consumable_events", "products"}
