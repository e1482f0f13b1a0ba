package auth

// fakeSession is a map-backed stand-in for the gin-contrib session used
// across this package's tests.
type fakeSession struct {
	values  map[interface{}]interface{}
	flashes []interface{}
	saveErr error
	saves   int
}

func newFakeSession() *fakeSession {
	return &fakeSession{values: map[interface{}]interface{}{}}
}

func (s *fakeSession) Get(key interface{}) interface{} {
	return s.values[key]
}

func (s *fakeSession) Set(key interface{}, val interface{}) {
	s.values[key] = val
}

func (s *fakeSession) Delete(key interface{}) {
	delete(s.values, key)
}

func (s *fakeSession) AddFlash(value interface{}, vars ...string) {
	s.flashes = append(s.flashes, value)
}

func (s *fakeSession) Flashes(vars ...string) []interface{} {
	out := s.flashes
	s.flashes = nil
	return out
}

func (s *fakeSession) Clear() {
	s.values = map[interface{}]interface{}{}
}

func (s *fakeSession) Save() error {
	s.saves++
	return s.saveErr
}
