package playground

import (
	"sync"
)

// State field names reported in a Change. They match the JSON names of State.
const (
	FieldCurrentStep       = "current_step"
	FieldSplitStrategy     = "split_strategy"
	FieldChunkSize         = "chunk_size"
	FieldOverlapSize       = "overlap_size"
	FieldCurrentDocIndex   = "current_doc_index"
	FieldPageCount         = "page_count"
	FieldDocumentPreview   = "document_preview"
	FieldChunksTable       = "chunks_table"
	FieldGraphHTML         = "graph_html"
	FieldRAGQuery          = "rag_query"
	FieldRAGAnswer         = "rag_answer"
	FieldRAGPromptTemplate = "rag_prompt_template"
	FieldError             = "error"
)

// Change describes one state mutation: the fields that changed and the state
// right after the change.
type Change struct {
	Fields []string `json:"fields"`
	State  State    `json:"state"`
}

// Has reports whether field is among the changed fields.
func (c Change) Has(field string) bool {
	for _, f := range c.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Listener receives state changes.
type Listener interface {
	// OnChange is called after every mutation, outside the state lock.
	OnChange(change Change)
}

// ListenerFunc is a function adapter for Listener.
type ListenerFunc func(change Change)

// OnChange implements the Listener interface.
func (f ListenerFunc) OnChange(change Change) {
	f(change)
}

type listeners struct {
	mu     sync.RWMutex
	nextID int
	byID   map[int]Listener
	order  []int
}

func (ls *listeners) add(l Listener) func() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.byID == nil {
		ls.byID = make(map[int]Listener)
	}
	id := ls.nextID
	ls.nextID++
	ls.byID[id] = l
	ls.order = append(ls.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { ls.remove(id) })
	}
}

func (ls *listeners) remove(id int) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	delete(ls.byID, id)
	for i, v := range ls.order {
		if v == id {
			ls.order = append(ls.order[:i], ls.order[i+1:]...)
			break
		}
	}
}

func (ls *listeners) snapshot() []Listener {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	out := make([]Listener, 0, len(ls.order))
	for _, id := range ls.order {
		out = append(out, ls.byID[id])
	}
	return out
}

// notify delivers change to every listener concurrently and waits for all of
// them. A panicking listener does not affect the others.
func (ls *listeners) notify(change Change, onPanic func(any)) {
	current := ls.snapshot()
	if len(current) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, l := range current {
		wg.Add(1)
		go func(l Listener) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil && onPanic != nil {
					onPanic(r)
				}
			}()
			l.OnChange(change)
		}(l)
	}
	wg.Wait()
}
