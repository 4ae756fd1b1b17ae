package inmemdb

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/masomo/core/attendance"
	"github.com/trezcool/masomo/core/incident"
	"github.com/trezcool/masomo/core/realtime"
	"github.com/trezcool/masomo/core/roster"
)

var nowFunc = time.Now // mockable

type (
	// DB is a process-local store. Every committed insert is published to the Broker it was opened with,
	// the way the postgres trigger notifies the change feed.
	DB struct {
		incidents  *incidentTable
		attendance *attendanceTable
		roster     *rosterTable

		publisher realtime.Broker

		errMu     sync.Mutex
		insertErr error
	}

	incidentTable struct {
		t     map[string]*incident.Incident
		mutex sync.RWMutex
	}

	attendanceTable struct {
		t     map[string]*attendance.Record
		mutex sync.RWMutex
	}

	rosterTable struct {
		students map[string]*roster.Student // {code: student}
		doctors  map[string]*roster.Doctor  // {email: doctor}
		courses  map[string]*roster.Course  // {code: course}
		mutex    sync.RWMutex
	}
)

// Open returns an empty DB; publisher may be nil.
func Open(publisher realtime.Broker) *DB {
	return &DB{
		incidents:  &incidentTable{t: make(map[string]*incident.Incident)},
		attendance: &attendanceTable{t: make(map[string]*attendance.Record)},
		roster: &rosterTable{
			students: make(map[string]*roster.Student),
			doctors:  make(map[string]*roster.Doctor),
			courses:  make(map[string]*roster.Course),
		},
		publisher: publisher,
	}
}

// SetInsertError makes every insert fail with err until it is reset with nil.
func (db *DB) SetInsertError(err error) {
	db.errMu.Lock()
	defer db.errMu.Unlock()
	db.insertErr = err
}

func (db *DB) checkInsert(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.errMu.Lock()
	defer db.errMu.Unlock()
	return db.insertErr
}

// notify runs after the insert is committed; a failed notification never undoes it.
func (db *DB) notify(table string, row interface{}) {
	if db.publisher == nil {
		return
	}
	c, err := realtime.NewChange(table, realtime.EventInsert, row, nil)
	if err != nil {
		return
	}
	_ = db.publisher.Publish(context.Background(), c)
}

func newID() string { return uuid.NewString() }

func now() time.Time { return nowFunc().UTC().Truncate(time.Microsecond) }
