// Package uowtest is an in-memory unit of work for service tests. A
// transaction holds one global mutex from Begin to Commit/Rollback and works
// on a deep copy of the store, which reproduces the exclusive row lock
// semantics the services rely on: a concurrent writer blocks, then re-reads
// the winner's committed state.
package uowtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/karakol/delivery/internal/dal/interfaces/icourierrepo"
	"github.com/karakol/delivery/internal/dal/interfaces/iorderitemrepo"
	"github.com/karakol/delivery/internal/dal/interfaces/iorderrepo"
	"github.com/karakol/delivery/internal/dal/interfaces/ioutboxrepo"
	"github.com/karakol/delivery/internal/dal/interfaces/ipromorepo"
	"github.com/karakol/delivery/internal/dal/interfaces/iratingrepo"
	"github.com/karakol/delivery/internal/dal/interfaces/irestaurantrepo"
	"github.com/karakol/delivery/internal/dal/interfaces/izonerepo"
	"github.com/karakol/delivery/internal/dal/uow"
	"github.com/karakol/delivery/internal/service/models/apperr"
	"github.com/karakol/delivery/internal/service/models/courier"
	"github.com/karakol/delivery/internal/service/models/order"
	"github.com/karakol/delivery/internal/service/models/orderitem"
	"github.com/karakol/delivery/internal/service/models/outbox"
	"github.com/karakol/delivery/internal/service/models/promo"
	"github.com/karakol/delivery/internal/service/models/rating"
	"github.com/karakol/delivery/internal/service/models/restaurant"
	"github.com/karakol/delivery/internal/service/models/zone"
)

type data struct {
	orders      map[int64]order.Order
	items       map[int64]orderitem.OrderItem
	couriers    map[int64]courier.Courier
	zones       map[int64]zone.Zone
	restaurants map[int64]restaurant.Restaurant
	ratings     map[int64]rating.Rating
	promos      map[int64]promo.PromoCode
	outbox      []outbox.OutboxMessage

	nextOrderID  int64
	nextItemID   int64
	nextRatingID int64
}

func (d *data) clone() *data {
	c := &data{
		orders:       make(map[int64]order.Order, len(d.orders)),
		items:        make(map[int64]orderitem.OrderItem, len(d.items)),
		couriers:     make(map[int64]courier.Courier, len(d.couriers)),
		zones:        make(map[int64]zone.Zone, len(d.zones)),
		restaurants:  make(map[int64]restaurant.Restaurant, len(d.restaurants)),
		ratings:      make(map[int64]rating.Rating, len(d.ratings)),
		promos:       make(map[int64]promo.PromoCode, len(d.promos)),
		outbox:       append([]outbox.OutboxMessage(nil), d.outbox...),
		nextOrderID:  d.nextOrderID,
		nextItemID:   d.nextItemID,
		nextRatingID: d.nextRatingID,
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.items {
		c.items[k] = v
	}
	for k, v := range d.couriers {
		c.couriers[k] = v
	}
	for k, v := range d.zones {
		c.zones[k] = v
	}
	for k, v := range d.restaurants {
		c.restaurants[k] = v
	}
	for k, v := range d.ratings {
		c.ratings[k] = v
	}
	for k, v := range d.promos {
		c.promos[k] = v
	}

	return c
}

// Store is the shared in-memory state behind the fake units of work.
type Store struct {
	mu   sync.Mutex
	data *data
}

func NewStore() *Store {
	return &Store{
		data: &data{
			orders:       map[int64]order.Order{},
			items:        map[int64]orderitem.OrderItem{},
			couriers:     map[int64]courier.Courier{},
			zones:        map[int64]zone.Zone{},
			restaurants:  map[int64]restaurant.Restaurant{},
			ratings:      map[int64]rating.Rating{},
			promos:       map[int64]promo.PromoCode{},
			nextOrderID:  1,
			nextItemID:   1,
			nextRatingID: 1,
		},
	}
}

// Factory returns a uow.Factory over this store.
func (s *Store) Factory() uow.Factory {
	return func() uow.UnitOfWork {
		return &memUow{store: s}
	}
}

// Seed helpers mutate live state directly; call them before starting the code
// under test.

func (s *Store) SeedOrder(o order.Order) order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == 0 {
		o.ID = s.data.nextOrderID
		s.data.nextOrderID++
	} else if o.ID >= s.data.nextOrderID {
		s.data.nextOrderID = o.ID + 1
	}
	s.data.orders[o.ID] = o

	return o
}

func (s *Store) SeedItem(item orderitem.OrderItem) orderitem.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == 0 {
		item.ID = s.data.nextItemID
		s.data.nextItemID++
	}
	s.data.items[item.ID] = item

	return item
}

func (s *Store) SeedCourier(c courier.Courier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.couriers[c.ID] = c
}

func (s *Store) SeedZone(z zone.Zone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.zones[z.ID] = z
}

func (s *Store) SeedRestaurant(r restaurant.Restaurant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.restaurants[r.ID] = r
}

func (s *Store) SeedPromo(p promo.PromoCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.promos[p.ID] = p
}

// Order reads the committed order state.
func (s *Store) Order(id int64) (order.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.data.orders[id]

	return o, ok
}

// Courier reads the committed courier state.
func (s *Store) Courier(id int64) (courier.Courier, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.data.couriers[id]

	return c, ok
}

// Zone reads the committed zone state.
func (s *Store) Zone(id int64) (zone.Zone, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	z, ok := s.data.zones[id]

	return z, ok
}

// Restaurant reads the committed restaurant state.
func (s *Store) Restaurant(id int64) (restaurant.Restaurant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.data.restaurants[id]

	return r, ok
}

// Promo reads the committed promo state.
func (s *Store) Promo(id int64) (promo.PromoCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.data.promos[id]

	return p, ok
}

// OutboxMessages reads the committed outbox.
func (s *Store) OutboxMessages() []outbox.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]outbox.OutboxMessage(nil), s.data.outbox...)
}

type memUow struct {
	store *Store
	tx    *data
}

func (u *memUow) Begin(ctx context.Context) error {
	u.store.mu.Lock()
	u.tx = u.store.data.clone()

	return nil
}

func (u *memUow) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	u.store.data = u.tx
	u.tx = nil
	u.store.mu.Unlock()

	return nil
}

func (u *memUow) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	u.tx = nil
	u.store.mu.Unlock()

	return nil
}

// view runs fn against the right state: the transaction copy when one is
// open, otherwise the live store under a short lock.
func (u *memUow) view(fn func(d *data)) {
	if u.tx != nil {
		fn(u.tx)

		return
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	fn(u.store.data)
}

func (u *memUow) Orders() iorderrepo.IOrderRepository               { return ordersRepo{u} }
func (u *memUow) OrderItems() iorderitemrepo.IOrderItemRepository   { return itemsRepo{u} }
func (u *memUow) Couriers() icourierrepo.ICourierRepository         { return couriersRepo{u} }
func (u *memUow) Zones() izonerepo.IZoneRepository                  { return zonesRepo{u} }
func (u *memUow) Restaurants() irestaurantrepo.IRestaurantRepository { return restaurantsRepo{u} }
func (u *memUow) Ratings() iratingrepo.IRatingRepository            { return ratingsRepo{u} }
func (u *memUow) Promos() ipromorepo.IPromoRepository               { return promosRepo{u} }
func (u *memUow) Outbox() ioutboxrepo.IOutboxRepository             { return outboxRepo{u} }

type ordersRepo struct{ u *memUow }

func (r ordersRepo) GetByID(ctx context.Context, id int64) (order.Order, error) {
	var (
		o  order.Order
		ok bool
	)
	r.u.view(func(d *data) { o, ok = d.orders[id] })
	if !ok {
		return order.Order{}, apperr.NotFoundf("order %d not found", id)
	}

	return o, nil
}

func (r ordersRepo) GetForUpdate(ctx context.Context, id int64) (order.Order, error) {
	return r.GetByID(ctx, id)
}

func (r ordersRepo) FindCart(ctx context.Context, customerID int64) (*order.Order, error) {
	var found *order.Order
	r.u.view(func(d *data) {
		for _, o := range d.orders {
			if o.CustomerID == customerID && o.Status == order.StatusCart {
				o := o
				found = &o

				return
			}
		}
	})

	return found, nil
}

func (r ordersRepo) Insert(ctx context.Context, o order.Order) (order.Order, error) {
	r.u.view(func(d *data) {
		o.ID = d.nextOrderID
		d.nextOrderID++
		d.orders[o.ID] = o
	})

	return o, nil
}

func (r ordersRepo) Update(ctx context.Context, o order.Order) error {
	var ok bool
	r.u.view(func(d *data) {
		_, ok = d.orders[o.ID]
		if ok {
			d.orders[o.ID] = o
		}
	})
	if !ok {
		return apperr.NotFoundf("order %d not found", o.ID)
	}

	return nil
}

func (r ordersRepo) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	var result []order.Order
	r.u.view(func(d *data) {
		for _, o := range d.orders {
			if len(filter.Ids) > 0 && !containsInt64(filter.Ids, o.ID) {
				continue
			}
			if len(filter.CustomerIds) > 0 && !containsInt64(filter.CustomerIds, o.CustomerID) {
				continue
			}
			if len(filter.CourierIds) > 0 && (o.CourierID == nil || !containsInt64(filter.CourierIds, *o.CourierID)) {
				continue
			}
			if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, o.Status) {
				continue
			}
			result = append(result, o)
		}
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

func (r ordersRepo) ListUnassigned(ctx context.Context, limit int) ([]int64, error) {
	var result []int64
	r.u.view(func(d *data) {
		var candidates []order.Order
		for _, o := range d.orders {
			if o.Assignable() {
				candidates = append(candidates, o)
			}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.Before(candidates[j].CreatedAt) })
		for _, o := range candidates {
			if len(result) == limit {
				break
			}
			result = append(result, o.ID)
		}
	})

	return result, nil
}

func (r ordersRepo) ListActive(ctx context.Context) ([]order.Order, error) {
	var result []order.Order
	r.u.view(func(d *data) {
		for _, o := range d.orders {
			switch o.Status {
			case order.StatusAssigned, order.StatusPickedUp, order.StatusDelivering:
				result = append(result, o)
			}
		}
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

func (r ordersRepo) DeliveredScoresByZone(ctx context.Context, zoneID int64) ([]int, error) {
	var scores []int
	r.u.view(func(d *data) {
		for _, rt := range d.ratings {
			o, ok := d.orders[rt.OrderID]
			if !ok || o.ZoneID == nil || *o.ZoneID != zoneID || o.Status != order.StatusDelivered {
				continue
			}
			scores = append(scores, rt.Score)
		}
	})

	return scores, nil
}

type itemsRepo struct{ u *memUow }

func (r itemsRepo) ListByOrder(ctx context.Context, orderID int64) ([]orderitem.OrderItem, error) {
	return r.ListByOrders(ctx, []int64{orderID})
}

func (r itemsRepo) ListByOrders(ctx context.Context, orderIDs []int64) ([]orderitem.OrderItem, error) {
	var result []orderitem.OrderItem
	r.u.view(func(d *data) {
		for _, item := range d.items {
			if containsInt64(orderIDs, item.OrderID) {
				result = append(result, item)
			}
		}
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

func (r itemsRepo) Insert(ctx context.Context, item orderitem.OrderItem) (orderitem.OrderItem, error) {
	r.u.view(func(d *data) {
		item.ID = d.nextItemID
		d.nextItemID++
		d.items[item.ID] = item
	})

	return item, nil
}

func (r itemsRepo) Update(ctx context.Context, item orderitem.OrderItem) error {
	r.u.view(func(d *data) { d.items[item.ID] = item })

	return nil
}

type couriersRepo struct{ u *memUow }

func (r couriersRepo) GetByID(ctx context.Context, id int64) (courier.Courier, error) {
	var (
		c  courier.Courier
		ok bool
	)
	r.u.view(func(d *data) { c, ok = d.couriers[id] })
	if !ok {
		return courier.Courier{}, apperr.NotFoundf("courier %d not found", id)
	}

	return c, nil
}

func (r couriersRepo) GetForUpdate(ctx context.Context, id int64) (courier.Courier, error) {
	return r.GetByID(ctx, id)
}

func (r couriersRepo) FirstAvailable(ctx context.Context) (*courier.Courier, error) {
	var found *courier.Courier
	r.u.view(func(d *data) {
		ids := make([]int64, 0, len(d.couriers))
		for id := range d.couriers {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			c := d.couriers[id]
			if c.CanTakeOrders() {
				found = &c

				return
			}
		}
	})

	return found, nil
}

func (r couriersRepo) Update(ctx context.Context, c courier.Courier) error {
	var ok bool
	r.u.view(func(d *data) {
		_, ok = d.couriers[c.ID]
		if ok {
			d.couriers[c.ID] = c
		}
	})
	if !ok {
		return apperr.NotFoundf("courier %d not found", c.ID)
	}

	return nil
}

func (r couriersRepo) ListAvailable(ctx context.Context) ([]courier.Courier, error) {
	var result []courier.Courier
	r.u.view(func(d *data) {
		for _, c := range d.couriers {
			if c.IsAvailable {
				result = append(result, c)
			}
		}
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

type zonesRepo struct{ u *memUow }

func (r zonesRepo) GetByID(ctx context.Context, id int64) (zone.Zone, error) {
	var (
		z  zone.Zone
		ok bool
	)
	r.u.view(func(d *data) { z, ok = d.zones[id] })
	if !ok {
		return zone.Zone{}, apperr.NotFoundf("delivery zone %d not found", id)
	}

	return z, nil
}

func (r zonesRepo) UpdateAvgRating(ctx context.Context, id int64, avg decimal.Decimal) error {
	r.u.view(func(d *data) {
		z, ok := d.zones[id]
		if ok {
			z.AvgRating = avg
			d.zones[id] = z
		}
	})

	return nil
}

type restaurantsRepo struct{ u *memUow }

func (r restaurantsRepo) GetByID(ctx context.Context, id int64) (restaurant.Restaurant, error) {
	var (
		rest restaurant.Restaurant
		ok   bool
	)
	r.u.view(func(d *data) { rest, ok = d.restaurants[id] })
	if !ok {
		return restaurant.Restaurant{}, apperr.NotFoundf("restaurant %d not found", id)
	}

	return rest, nil
}

func (r restaurantsRepo) ListActive(ctx context.Context) ([]restaurant.Restaurant, error) {
	var result []restaurant.Restaurant
	r.u.view(func(d *data) {
		for _, rest := range d.restaurants {
			if rest.IsActive {
				result = append(result, rest)
			}
		}
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

func (r restaurantsRepo) UpdateAvgRating(ctx context.Context, id int64, avg decimal.Decimal) error {
	r.u.view(func(d *data) {
		rest, ok := d.restaurants[id]
		if ok {
			rest.AvgRating = avg
			d.restaurants[id] = rest
		}
	})

	return nil
}

type ratingsRepo struct{ u *memUow }

func (r ratingsRepo) Insert(ctx context.Context, rt rating.Rating) (rating.Rating, error) {
	r.u.view(func(d *data) {
		rt.ID = d.nextRatingID
		d.nextRatingID++
		d.ratings[rt.ID] = rt
	})

	return rt, nil
}

func (r ratingsRepo) FindByOrder(ctx context.Context, orderID int64) (*rating.Rating, error) {
	var found *rating.Rating
	r.u.view(func(d *data) {
		for _, rt := range d.ratings {
			if rt.OrderID == orderID {
				rt := rt
				found = &rt

				return
			}
		}
	})

	return found, nil
}

func (r ratingsRepo) ScoresByCourier(ctx context.Context, courierID int64) ([]int, error) {
	var scores []int
	r.u.view(func(d *data) {
		for _, rt := range d.ratings {
			if rt.CourierID == courierID {
				scores = append(scores, rt.Score)
			}
		}
	})

	return scores, nil
}

func (r ratingsRepo) ScoresByRestaurant(ctx context.Context, restaurantID int64) ([]int, error) {
	var scores []int
	r.u.view(func(d *data) {
		for _, rt := range d.ratings {
			if rt.RestaurantID != nil && *rt.RestaurantID == restaurantID {
				scores = append(scores, rt.Score)
			}
		}
	})

	return scores, nil
}

type promosRepo struct{ u *memUow }

func (r promosRepo) GetByCode(ctx context.Context, code string) (promo.PromoCode, error) {
	var found *promo.PromoCode
	r.u.view(func(d *data) {
		for _, p := range d.promos {
			if p.Code == code {
				p := p
				found = &p

				return
			}
		}
	})
	if found == nil {
		return promo.PromoCode{}, apperr.NotFoundf("promo code %q not found", code)
	}

	return *found, nil
}

func (r promosRepo) GetForUpdate(ctx context.Context, code string) (promo.PromoCode, error) {
	return r.GetByCode(ctx, code)
}

func (r promosRepo) IncrementUsage(ctx context.Context, id int64) error {
	var ok bool
	r.u.view(func(d *data) {
		p, found := d.promos[id]
		ok = found
		if found {
			p.UsedCount++
			d.promos[id] = p
		}
	})
	if !ok {
		return apperr.NotFoundf("promo code %d not found", id)
	}

	return nil
}

type outboxRepo struct{ u *memUow }

func (r outboxRepo) Insert(ctx context.Context, msg outbox.OutboxMessage) error {
	r.u.view(func(d *data) {
		msg.ID = int64(len(d.outbox) + 1)
		d.outbox = append(d.outbox, msg)
	})

	return nil
}

func (r outboxRepo) GetPendingMessages(ctx context.Context, limit int) ([]outbox.OutboxMessage, error) {
	var result []outbox.OutboxMessage
	r.u.view(func(d *data) {
		for _, msg := range d.outbox {
			if len(result) == limit {
				break
			}
			result = append(result, msg)
		}
	})

	return result, nil
}

func (r outboxRepo) Delete(ctx context.Context, id int64) error {
	r.u.view(func(d *data) {
		for i, msg := range d.outbox {
			if msg.ID == id {
				d.outbox = append(d.outbox[:i], d.outbox[i+1:]...)

				return
			}
		}
	})

	return nil
}

func (r outboxRepo) UpdateRetry(ctx context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	r.u.view(func(d *data) {
		for i, msg := range d.outbox {
			if msg.ID == id {
				msg.RetryCount = retryCount
				msg.LastError = lastError
				msg.NextRetryAt = nextRetryAt
				d.outbox[i] = msg

				return
			}
		}
	})

	return nil
}

func containsInt64(haystack []int64, needle int64) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}

	return false
}

func containsStatus(haystack []order.Status, needle order.Status) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}

	return false
}
