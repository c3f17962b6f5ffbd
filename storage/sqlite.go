package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"parcelpoint.app/cloud/internal/logger"
	"parcelpoint.app/cloud/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type SQLiteStorage struct {
	db   *sql.DB
	path string
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	// SQLite only checks the declared foreign keys when asked to.
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStorage{db: db, path: path}, nil
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

func (s *SQLiteStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, email, name, role, stripe_customer_id, created_at, updated_at FROM users WHERE id = ?`

	var user models.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.StripeCustomerID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (s *SQLiteStorage) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, name, role, stripe_customer_id, created_at, updated_at FROM users WHERE email = ?`

	var user models.User
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.StripeCustomerID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (s *SQLiteStorage) SaveUser(ctx context.Context, user *models.User) error {
	query := `INSERT OR REPLACE INTO users (id, email, name, role, stripe_customer_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Role,
		user.StripeCustomerID,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) SetUserStripeCustomerID(ctx context.Context, userID, stripeCustomerID string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %s not found", userID)
	}
	if user.StripeCustomerID != "" && user.StripeCustomerID != stripeCustomerID {
		return fmt.Errorf("user %s already mapped to billing customer %s", userID, user.StripeCustomerID)
	}

	query := `UPDATE users SET stripe_customer_id = ?, updated_at = ? WHERE id = ?`
	_, err = s.db.ExecContext(ctx, query, stripeCustomerID, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to set billing customer id: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	query := `SELECT id, name, email, phone, company, user_id, created_at, updated_at FROM customers WHERE id = ?`

	var customer models.Customer
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&customer.ID,
		&customer.Name,
		&customer.Email,
		&customer.Phone,
		&customer.Company,
		&customer.UserID,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &customer, nil
}

func (s *SQLiteStorage) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	query := `SELECT id, name, email, phone, company, user_id, created_at, updated_at FROM customers ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer closeRows(rows)

	var customers []*models.Customer
	for rows.Next() {
		var customer models.Customer
		err := rows.Scan(
			&customer.ID,
			&customer.Name,
			&customer.Email,
			&customer.Phone,
			&customer.Company,
			&customer.UserID,
			&customer.CreatedAt,
			&customer.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, &customer)
	}

	return customers, rows.Err()
}

func (s *SQLiteStorage) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	query := `INSERT OR REPLACE INTO customers (id, name, email, phone, company, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		customer.ID,
		customer.Name,
		customer.Email,
		customer.Phone,
		customer.Company,
		customer.UserID,
		customer.CreatedAt,
		customer.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) DeleteCustomer(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	query := `SELECT id, name, address, city, locker_count, active, created_at, updated_at FROM locations WHERE id = ?`

	var location models.Location
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&location.ID,
		&location.Name,
		&location.Address,
		&location.City,
		&location.LockerCount,
		&location.Active,
		&location.CreatedAt,
		&location.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &location, nil
}

func (s *SQLiteStorage) ListLocations(ctx context.Context) ([]*models.Location, error) {
	query := `SELECT id, name, address, city, locker_count, active, created_at, updated_at FROM locations ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer closeRows(rows)

	var locations []*models.Location
	for rows.Next() {
		var location models.Location
		err := rows.Scan(
			&location.ID,
			&location.Name,
			&location.Address,
			&location.City,
			&location.LockerCount,
			&location.Active,
			&location.CreatedAt,
			&location.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, &location)
	}

	return locations, rows.Err()
}

func (s *SQLiteStorage) SaveLocation(ctx context.Context, location *models.Location) error {
	query := `INSERT OR REPLACE INTO locations (id, name, address, city, locker_count, active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		location.ID,
		location.Name,
		location.Address,
		location.City,
		location.LockerCount,
		location.Active,
		location.CreatedAt,
		location.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save location: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) DeleteLocation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	query := `SELECT id, location_id, name, email, role, created_at, updated_at FROM employees WHERE id = ?`

	var employee models.Employee
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&employee.ID,
		&employee.LocationID,
		&employee.Name,
		&employee.Email,
		&employee.Role,
		&employee.CreatedAt,
		&employee.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &employee, nil
}

func (s *SQLiteStorage) ListEmployeesByLocation(ctx context.Context, locationID string) ([]*models.Employee, error) {
	query := `SELECT id, location_id, name, email, role, created_at, updated_at FROM employees WHERE location_id = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer closeRows(rows)

	var employees []*models.Employee
	for rows.Next() {
		var employee models.Employee
		err := rows.Scan(
			&employee.ID,
			&employee.LocationID,
			&employee.Name,
			&employee.Email,
			&employee.Role,
			&employee.CreatedAt,
			&employee.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, &employee)
	}

	return employees, rows.Err()
}

func (s *SQLiteStorage) SaveEmployee(ctx context.Context, employee *models.Employee) error {
	query := `INSERT OR REPLACE INTO employees (id, location_id, name, email, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		employee.ID,
		employee.LocationID,
		employee.Name,
		employee.Email,
		employee.Role,
		employee.CreatedAt,
		employee.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) DeleteEmployee(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM employees WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}
	return nil
}

const orderColumns = `id, customer_id, location_id, locker_number, carrier, tracking_number, pickup_code, status, delivered_at, picked_up_at, created_at, updated_at`

func scanOrder(scanner interface{ Scan(dest ...any) error }) (*models.Order, error) {
	var order models.Order
	var deliveredAt, pickedUpAt sql.NullTime

	err := scanner.Scan(
		&order.ID,
		&order.CustomerID,
		&order.LocationID,
		&order.LockerNumber,
		&order.Carrier,
		&order.TrackingNumber,
		&order.PickupCode,
		&order.Status,
		&deliveredAt,
		&pickedUpAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if deliveredAt.Valid {
		order.DeliveredAt = &deliveredAt.Time
	}
	if pickedUpAt.Valid {
		order.PickedUpAt = &pickedUpAt.Time
	}

	return &order, nil
}

func (s *SQLiteStorage) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	order, err := scanOrder(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return order, nil
}

func (s *SQLiteStorage) FindOrderByPickupCode(ctx context.Context, code string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE pickup_code = ?`

	order, err := scanOrder(s.db.QueryRowContext(ctx, query, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return order, nil
}

func (s *SQLiteStorage) listOrders(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer closeRows(rows)

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

func (s *SQLiteStorage) ListOrdersByCustomer(ctx context.Context, customerID string) ([]*models.Order, error) {
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id = ? ORDER BY id`, customerID)
}

func (s *SQLiteStorage) ListOrdersByLocation(ctx context.Context, locationID string) ([]*models.Order, error) {
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE location_id = ? ORDER BY id`, locationID)
}

func (s *SQLiteStorage) SaveOrder(ctx context.Context, order *models.Order) error {
	query := `INSERT OR REPLACE INTO orders (` + orderColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var deliveredAt, pickedUpAt any
	if order.DeliveredAt != nil {
		deliveredAt = *order.DeliveredAt
	}
	if order.PickedUpAt != nil {
		pickedUpAt = *order.PickedUpAt
	}

	_, err := s.db.ExecContext(ctx, query,
		order.ID,
		order.CustomerID,
		order.LocationID,
		order.LockerNumber,
		order.Carrier,
		order.TrackingNumber,
		order.PickupCode,
		order.Status,
		deliveredAt,
		pickedUpAt,
		order.CreatedAt,
		order.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) ListCommentsByOrder(ctx context.Context, orderID string) ([]*models.Comment, error) {
	query := `SELECT id, order_id, author_id, parent_id, body, created_at, updated_at FROM comments WHERE order_id = ? ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer closeRows(rows)

	var comments []*models.Comment
	for rows.Next() {
		var comment models.Comment
		err := rows.Scan(
			&comment.ID,
			&comment.OrderID,
			&comment.AuthorID,
			&comment.ParentID,
			&comment.Body,
			&comment.CreatedAt,
			&comment.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, &comment)
	}

	return comments, rows.Err()
}

func (s *SQLiteStorage) SaveComment(ctx context.Context, comment *models.Comment) error {
	query := `INSERT OR REPLACE INTO comments (id, order_id, author_id, parent_id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		comment.ID,
		comment.OrderID,
		comment.AuthorID,
		comment.ParentID,
		comment.Body,
		comment.CreatedAt,
		comment.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save comment: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) DeleteComment(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListNotesByCustomer(ctx context.Context, customerID string) ([]*models.Note, error) {
	query := `SELECT id, customer_id, author_id, body, created_at, updated_at FROM notes WHERE customer_id = ? ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer closeRows(rows)

	var notes []*models.Note
	for rows.Next() {
		var note models.Note
		err := rows.Scan(
			&note.ID,
			&note.CustomerID,
			&note.AuthorID,
			&note.Body,
			&note.CreatedAt,
			&note.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, &note)
	}

	return notes, rows.Err()
}

func (s *SQLiteStorage) SaveNote(ctx context.Context, note *models.Note) error {
	query := `INSERT OR REPLACE INTO notes (id, customer_id, author_id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		note.ID,
		note.CustomerID,
		note.AuthorID,
		note.Body,
		note.CreatedAt,
		note.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save note: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) DeleteNote(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListTrustedContactsByCustomer(ctx context.Context, customerID string) ([]*models.TrustedContact, error) {
	query := `SELECT id, customer_id, name, email, phone, created_at, updated_at FROM trusted_contacts WHERE customer_id = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trusted contacts: %w", err)
	}
	defer closeRows(rows)

	var contacts []*models.TrustedContact
	for rows.Next() {
		var contact models.TrustedContact
		err := rows.Scan(
			&contact.ID,
			&contact.CustomerID,
			&contact.Name,
			&contact.Email,
			&contact.Phone,
			&contact.CreatedAt,
			&contact.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trusted contact: %w", err)
		}
		contacts = append(contacts, &contact)
	}

	return contacts, rows.Err()
}

func (s *SQLiteStorage) SaveTrustedContact(ctx context.Context, contact *models.TrustedContact) error {
	query := `INSERT OR REPLACE INTO trusted_contacts (id, customer_id, name, email, phone, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		contact.ID,
		contact.CustomerID,
		contact.Name,
		contact.Email,
		contact.Phone,
		contact.CreatedAt,
		contact.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save trusted contact: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) DeleteTrustedContact(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM trusted_contacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trusted contact: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) OrderCountsByStatus(ctx context.Context) (map[string]int64, error) {
	query := `SELECT status, COUNT(*) FROM orders GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query order counts: %w", err)
	}
	defer closeRows(rows)

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan order count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

func (s *SQLiteStorage) DailyOrderVolume(ctx context.Context, days int) ([]models.VolumePoint, error) {
	query := `
      SELECT date(created_at) AS day, COUNT(*)
      FROM orders
      WHERE created_at >= datetime('now', ?)
      GROUP BY day
      ORDER BY day`

	rows, err := s.db.QueryContext(ctx, query, fmt.Sprintf("-%d days", days))
	if err != nil {
		return nil, fmt.Errorf("failed to query order volume: %w", err)
	}
	defer closeRows(rows)

	var points []models.VolumePoint
	for rows.Next() {
		var point models.VolumePoint
		if err := rows.Scan(&point.Day, &point.Count); err != nil {
			return nil, fmt.Errorf("failed to scan volume point: %w", err)
		}
		points = append(points, point)
	}

	return points, rows.Err()
}

func (s *SQLiteStorage) LocationThroughput(ctx context.Context, days int) ([]models.LocationStat, error) {
	query := `
      SELECT l.id, l.name,
             COUNT(o.id),
             AVG((julianday(o.picked_up_at) - julianday(o.delivered_at)) * 24)
      FROM locations l
      LEFT JOIN orders o
        ON o.location_id = l.id
       AND o.created_at >= datetime('now', ?)
      GROUP BY l.id, l.name
      ORDER BY COUNT(o.id) DESC, l.id`

	rows, err := s.db.QueryContext(ctx, query, fmt.Sprintf("-%d days", days))
	if err != nil {
		return nil, fmt.Errorf("failed to query location throughput: %w", err)
	}
	defer closeRows(rows)

	var stats []models.LocationStat
	for rows.Next() {
		var stat models.LocationStat
		var avgHours sql.NullFloat64
		if err := rows.Scan(&stat.LocationID, &stat.LocationName, &stat.Orders, &avgHours); err != nil {
			return nil, fmt.Errorf("failed to scan location stat: %w", err)
		}
		if avgHours.Valid {
			stat.AvgPickupHours = avgHours.Float64
		}
		stats = append(stats, stat)
	}

	return stats, rows.Err()
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logger.Warn("failed to close rows", map[string]any{"error": err.Error()})
	}
}
