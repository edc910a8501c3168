package engine

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"
)

// Driver opens an engine. On failure the driver releases any auxiliary
// resources it created; on success the caller owns the DB and resources.
type Driver interface {
	Open(path string, opts *Options) (DB, []Resource, error)
}

var (
	drivers    = make(map[string]Driver)
	driverLock sync.Mutex
)

var ErrUnknownDriver = errors.New("engine: driver is not registered")

func getDriver(name string) (Driver, error) {
	driverLock.Lock()
	defer driverLock.Unlock()

	d, ok := drivers[strings.ToLower(name)]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownDriver, "%q", name)
	}
	return d, nil
}

// Open opens a database with the driver registered under name.
func Open(name string, path string, opts *Options) (DB, []Resource, error) {
	d, err := getDriver(name)
	if err != nil {
		return nil, nil, err
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	return d.Open(path, opts)
}

// Drivers returns the sorted names of the registered drivers.
func Drivers() []string {
	driverLock.Lock()
	defer driverLock.Unlock()

	ds := make([]string, 0, len(drivers))
	for name := range drivers {
		ds = append(ds, name)
	}
	slices.Sort(ds)
	return ds
}

// Register makes a driver available under name. It panics if driver is nil
// or the name is taken.
func Register(name string, driver Driver) {
	driverLock.Lock()
	defer driverLock.Unlock()

	name = strings.ToLower(name)

	if driver == nil {
		panic("engine: empty driver for " + name)
	}
	if _, ok := drivers[name]; ok {
		panic("engine: " + name + " has been already registered")
	}
	drivers[name] = driver
}
