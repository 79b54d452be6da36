// Package document holds the text of the documents a client has open.
package document

// Store maps document URIs to their full current text.
//
// A Store belongs to a single session loop and is not safe for concurrent use.
type Store struct {
	docs map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{docs: make(map[string]string)}
}

// Open records the text of a newly opened document, replacing any previous
// entry for uri.
func (s *Store) Open(uri, text string) {
	s.docs[uri] = text
}

// Replace sets the full text of uri. It reports whether the document was
// already present; an absent document is created.
func (s *Store) Replace(uri, text string) bool {
	_, existed := s.docs[uri]
	s.docs[uri] = text
	return existed
}

// Close forgets uri and reports whether it was open.
func (s *Store) Close(uri string) bool {
	_, existed := s.docs[uri]
	delete(s.docs, uri)
	return existed
}

// Get returns the text of uri.
func (s *Store) Get(uri string) (string, bool) {
	text, ok := s.docs[uri]
	return text, ok
}

// Len returns the number of open documents.
func (s *Store) Len() int {
	return len(s.docs)
}
