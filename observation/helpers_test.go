package observation_test

import (
	"testing"

	"github.com/delaneyj/observatory/observation"
	"github.com/stretchr/testify/assert"
)

type change struct {
	New, Old any
}

type changeLog struct {
	changes  []change
	err      error
	onChange func(newValue, oldValue any)
}

func (l *changeLog) HandleChange(newValue, oldValue any) error {
	l.changes = append(l.changes, change{newValue, oldValue})
	if l.onChange != nil {
		l.onChange(newValue, oldValue)
	}
	return l.err
}

type collectionLog struct {
	maps []observation.IndexMap
}

func (l *collectionLog) HandleCollectionChange(m observation.IndexMap, _ observation.Collection) error {
	l.maps = append(l.maps, m.Clone())
	return nil
}

func newSystem(t *testing.T, opts ...observation.Option) *observation.System {
	t.Helper()
	opts = append([]observation.Option{
		observation.WithErrorHandler(func(from any, err error) {
			assert.Fail(t, err.Error())
		}),
	}, opts...)
	return observation.NewSystem(opts...)
}

func observe(t *testing.T, sys *observation.System, obj any, key string) (observation.Observer, *changeLog) {
	t.Helper()
	obs, err := sys.Locator().Observer(obj, key)
	if err != nil {
		t.Fatal(err)
	}
	log := &changeLog{}
	obs.Subscribe(log)
	return obs, log
}

func observeCollection(sys *observation.System, c observation.Collection) *collectionLog {
	log := &collectionLog{}
	sys.Locator().CollectionObserver(c).SubscribeCollection(log)
	return log
}
