package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"parcelpoint.app/cloud/models"
)

// Storage is the application datastore. Lookups return (nil, nil) when
// the record does not exist; an error means the lookup itself failed.
type Storage interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	SetUserStripeCustomerID(ctx context.Context, userID, stripeCustomerID string) error

	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]*models.Customer, error)
	SaveCustomer(ctx context.Context, customer *models.Customer) error
	DeleteCustomer(ctx context.Context, id string) error

	GetLocation(ctx context.Context, id string) (*models.Location, error)
	ListLocations(ctx context.Context) ([]*models.Location, error)
	SaveLocation(ctx context.Context, location *models.Location) error
	DeleteLocation(ctx context.Context, id string) error

	GetEmployee(ctx context.Context, id string) (*models.Employee, error)
	ListEmployeesByLocation(ctx context.Context, locationID string) ([]*models.Employee, error)
	SaveEmployee(ctx context.Context, employee *models.Employee) error
	DeleteEmployee(ctx context.Context, id string) error

	GetOrder(ctx context.Context, id string) (*models.Order, error)
	FindOrderByPickupCode(ctx context.Context, code string) (*models.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]*models.Order, error)
	ListOrdersByLocation(ctx context.Context, locationID string) ([]*models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order) error

	ListCommentsByOrder(ctx context.Context, orderID string) ([]*models.Comment, error)
	SaveComment(ctx context.Context, comment *models.Comment) error
	DeleteComment(ctx context.Context, id string) error

	ListNotesByCustomer(ctx context.Context, customerID string) ([]*models.Note, error)
	SaveNote(ctx context.Context, note *models.Note) error
	DeleteNote(ctx context.Context, id string) error

	ListTrustedContactsByCustomer(ctx context.Context, customerID string) ([]*models.TrustedContact, error)
	SaveTrustedContact(ctx context.Context, contact *models.TrustedContact) error
	DeleteTrustedContact(ctx context.Context, id string) error

	OrderCountsByStatus(ctx context.Context) (map[string]int64, error)
	DailyOrderVolume(ctx context.Context, days int) ([]models.VolumePoint, error)
	LocationThroughput(ctx context.Context, days int) ([]models.LocationStat, error)

	Close() error
}

// MemoryStorage backs tests and local development.
type MemoryStorage struct {
	mu              sync.RWMutex
	Users           map[string]models.User
	Customers       map[string]models.Customer
	Locations       map[string]models.Location
	Employees       map[string]models.Employee
	Orders          map[string]models.Order
	Comments        map[string]models.Comment
	Notes           map[string]models.Note
	TrustedContacts map[string]models.TrustedContact
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Users:           make(map[string]models.User),
		Customers:       make(map[string]models.Customer),
		Locations:       make(map[string]models.Location),
		Employees:       make(map[string]models.Employee),
		Orders:          make(map[string]models.Order),
		Comments:        make(map[string]models.Comment),
		Notes:           make(map[string]models.Note),
		TrustedContacts: make(map[string]models.TrustedContact),
	}
}

func (m *MemoryStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, exists := m.Users[id]
	if !exists {
		return nil, nil
	}
	return &user, nil
}

func (m *MemoryStorage) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, user := range m.Users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) SaveUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users[user.ID] = *user
	return nil
}

func (m *MemoryStorage) SetUserStripeCustomerID(ctx context.Context, userID, stripeCustomerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.Users[userID]
	if !exists {
		return fmt.Errorf("user %s not found", userID)
	}
	// The mapping is written once and never changed afterwards.
	if user.StripeCustomerID != "" && user.StripeCustomerID != stripeCustomerID {
		return fmt.Errorf("user %s already mapped to billing customer %s", userID, user.StripeCustomerID)
	}
	user.StripeCustomerID = stripeCustomerID
	user.UpdatedAt = time.Now()
	m.Users[userID] = user
	return nil
}

func (m *MemoryStorage) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	customer, exists := m.Customers[id]
	if !exists {
		return nil, nil
	}
	return &customer, nil
}

func (m *MemoryStorage) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	customers := make([]*models.Customer, 0, len(m.Customers))
	for _, customer := range m.Customers {
		c := customer
		customers = append(customers, &c)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].ID < customers[j].ID })
	return customers, nil
}

func (m *MemoryStorage) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Customers[customer.ID] = *customer
	return nil
}

func (m *MemoryStorage) DeleteCustomer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Customers, id)
	return nil
}

func (m *MemoryStorage) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	location, exists := m.Locations[id]
	if !exists {
		return nil, nil
	}
	return &location, nil
}

func (m *MemoryStorage) ListLocations(ctx context.Context) ([]*models.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	locations := make([]*models.Location, 0, len(m.Locations))
	for _, location := range m.Locations {
		l := location
		locations = append(locations, &l)
	}
	sort.Slice(locations, func(i, j int) bool { return locations[i].ID < locations[j].ID })
	return locations, nil
}

func (m *MemoryStorage) SaveLocation(ctx context.Context, location *models.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Locations[location.ID] = *location
	return nil
}

func (m *MemoryStorage) DeleteLocation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Locations, id)
	return nil
}

func (m *MemoryStorage) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	employee, exists := m.Employees[id]
	if !exists {
		return nil, nil
	}
	return &employee, nil
}

func (m *MemoryStorage) ListEmployeesByLocation(ctx context.Context, locationID string) ([]*models.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var employees []*models.Employee
	for _, employee := range m.Employees {
		if employee.LocationID == locationID {
			e := employee
			employees = append(employees, &e)
		}
	}
	sort.Slice(employees, func(i, j int) bool { return employees[i].ID < employees[j].ID })
	return employees, nil
}

func (m *MemoryStorage) SaveEmployee(ctx context.Context, employee *models.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.Locations[employee.LocationID]; !exists {
		return fmt.Errorf("location %s not found", employee.LocationID)
	}
	m.Employees[employee.ID] = *employee
	return nil
}

func (m *MemoryStorage) DeleteEmployee(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Employees, id)
	return nil
}

func (m *MemoryStorage) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, exists := m.Orders[id]
	if !exists {
		return nil, nil
	}
	return &order, nil
}

func (m *MemoryStorage) FindOrderByPickupCode(ctx context.Context, code string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, order := range m.Orders {
		if order.PickupCode == code {
			o := order
			return &o, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) ListOrdersByCustomer(ctx context.Context, customerID string) ([]*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var orders []*models.Order
	for _, order := range m.Orders {
		if order.CustomerID == customerID {
			o := order
			orders = append(orders, &o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

func (m *MemoryStorage) ListOrdersByLocation(ctx context.Context, locationID string) ([]*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var orders []*models.Order
	for _, order := range m.Orders {
		if order.LocationID == locationID {
			o := order
			orders = append(orders, &o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

func (m *MemoryStorage) SaveOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.Customers[order.CustomerID]; !exists {
		return fmt.Errorf("customer %s not found", order.CustomerID)
	}
	if _, exists := m.Locations[order.LocationID]; !exists {
		return fmt.Errorf("location %s not found", order.LocationID)
	}
	m.Orders[order.ID] = *order
	return nil
}

func (m *MemoryStorage) ListCommentsByOrder(ctx context.Context, orderID string) ([]*models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var comments []*models.Comment
	for _, comment := range m.Comments {
		if comment.OrderID == orderID {
			c := comment
			comments = append(comments, &c)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

func (m *MemoryStorage) SaveComment(ctx context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.Orders[comment.OrderID]; !exists {
		return fmt.Errorf("order %s not found", comment.OrderID)
	}
	m.Comments[comment.ID] = *comment
	return nil
}

func (m *MemoryStorage) DeleteComment(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Comments, id)
	return nil
}

func (m *MemoryStorage) ListNotesByCustomer(ctx context.Context, customerID string) ([]*models.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var notes []*models.Note
	for _, note := range m.Notes {
		if note.CustomerID == customerID {
			n := note
			notes = append(notes, &n)
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].CreatedAt.Before(notes[j].CreatedAt)
	})
	return notes, nil
}

func (m *MemoryStorage) SaveNote(ctx context.Context, note *models.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.Customers[note.CustomerID]; !exists {
		return fmt.Errorf("customer %s not found", note.CustomerID)
	}
	m.Notes[note.ID] = *note
	return nil
}

func (m *MemoryStorage) DeleteNote(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Notes, id)
	return nil
}

func (m *MemoryStorage) ListTrustedContactsByCustomer(ctx context.Context, customerID string) ([]*models.TrustedContact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var contacts []*models.TrustedContact
	for _, contact := range m.TrustedContacts {
		if contact.CustomerID == customerID {
			c := contact
			contacts = append(contacts, &c)
		}
	}
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].ID < contacts[j].ID })
	return contacts, nil
}

func (m *MemoryStorage) SaveTrustedContact(ctx context.Context, contact *models.TrustedContact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.Customers[contact.CustomerID]; !exists {
		return fmt.Errorf("customer %s not found", contact.CustomerID)
	}
	m.TrustedContacts[contact.ID] = *contact
	return nil
}

func (m *MemoryStorage) DeleteTrustedContact(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.TrustedContacts, id)
	return nil
}

func (m *MemoryStorage) OrderCountsByStatus(ctx context.Context) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int64)
	for _, order := range m.Orders {
		counts[order.Status]++
	}
	return counts, nil
}

func (m *MemoryStorage) DailyOrderVolume(ctx context.Context, days int) ([]models.VolumePoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().AddDate(0, 0, -days)
	byDay := make(map[string]int64)
	for _, order := range m.Orders {
		if order.CreatedAt.Before(cutoff) {
			continue
		}
		byDay[order.CreatedAt.Format("2006-01-02")]++
	}

	dayKeys := make([]string, 0, len(byDay))
	for day := range byDay {
		dayKeys = append(dayKeys, day)
	}
	sort.Strings(dayKeys)

	points := make([]models.VolumePoint, 0, len(dayKeys))
	for _, day := range dayKeys {
		points = append(points, models.VolumePoint{Day: day, Count: byDay[day]})
	}
	return points, nil
}

func (m *MemoryStorage) LocationThroughput(ctx context.Context, days int) ([]models.LocationStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().AddDate(0, 0, -days)
	stats := make(map[string]*models.LocationStat)
	pickupHours := make(map[string][]float64)

	for _, location := range m.Locations {
		stats[location.ID] = &models.LocationStat{
			LocationID:   location.ID,
			LocationName: location.Name,
		}
	}

	for _, order := range m.Orders {
		if order.CreatedAt.Before(cutoff) {
			continue
		}
		stat, exists := stats[order.LocationID]
		if !exists {
			continue
		}
		stat.Orders++
		if order.DeliveredAt != nil && order.PickedUpAt != nil {
			pickupHours[order.LocationID] = append(pickupHours[order.LocationID],
				order.PickedUpAt.Sub(*order.DeliveredAt).Hours())
		}
	}

	result := make([]models.LocationStat, 0, len(stats))
	for id, stat := range stats {
		if hours := pickupHours[id]; len(hours) > 0 {
			var sum float64
			for _, h := range hours {
				sum += h
			}
			stat.AvgPickupHours = sum / float64(len(hours))
		}
		result = append(result, *stat)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Orders != result[j].Orders {
			return result[i].Orders > result[j].Orders
		}
		return strings.Compare(result[i].LocationID, result[j].LocationID) < 0
	})
	return result, nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
