package merge

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"tabchat/domain/core"
	"tabchat/domain/table"
	"tabchat/internal/errors"
)

// TaskState tracks a merge task through its lifecycle
type TaskState string

const (
	TaskQueued     TaskState = "queued"
	TaskProcessing TaskState = "processing"
	TaskCompleted  TaskState = "completed"
	TaskFailed     TaskState = "failed"
)

type source struct {
	filename string
	dataset  *table.Dataset
}

type task struct {
	id          core.TaskID
	state       TaskState
	progress    float64
	sources     []source
	outputPath  string
	errMsg      string
	createdAt   time.Time
	completedAt time.Time
}

// TaskStatus is a snapshot of a merge task for callers
type TaskStatus struct {
	ID          string     `json:"task_id"`
	State       TaskState  `json:"state"`
	Progress    float64    `json:"progress"`
	Files       []string   `json:"files"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Service combines several uploaded tabular files into one workbook: a
// sheet per source plus a Combined sheet stacking every row under the union
// of the columns. Merges run in the background; callers poll the task.
type Service struct {
	mu        sync.RWMutex
	tasks     map[core.TaskID]*task
	outputDir string
}

// NewService builds a merge service writing workbooks under outputDir
func NewService(outputDir string) *Service {
	return &Service{
		tasks:     make(map[core.TaskID]*task),
		outputDir: outputDir,
	}
}

// CreateTask registers an empty merge task in the QUEUED state
func (s *Service) CreateTask() core.TaskID {
	t := &task{
		id:        core.NewTaskID(),
		state:     TaskQueued,
		createdAt: time.Now(),
	}
	s.mu.Lock()
	s.tasks[t.id] = t
	s.mu.Unlock()
	log.Printf("[Merge] Created task %s", t.id)
	return t.id
}

// AddFile attaches an already-parsed dataset to a queued task
func (s *Service) AddFile(id core.TaskID, filename string, ds *table.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return core.ErrTaskNotFound
	}
	if t.state != TaskQueued {
		return errors.InvalidInput(fmt.Sprintf("task %s is %s, files can only be added before the merge starts", id, t.state))
	}
	t.sources = append(t.sources, source{filename: filename, dataset: ds})
	return nil
}

// Start transitions the task to PROCESSING and merges in the background
func (s *Service) Start(id core.TaskID) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return core.ErrTaskNotFound
	}
	if t.state != TaskQueued {
		s.mu.Unlock()
		return errors.InvalidInput(fmt.Sprintf("task %s already %s", id, t.state))
	}
	if len(t.sources) < 2 {
		s.mu.Unlock()
		return errors.InvalidInput("a merge needs at least two files")
	}
	t.state = TaskProcessing
	s.mu.Unlock()

	log.Printf("[Merge] Task %s processing %d files", id, len(t.sources))
	go s.run(t)
	return nil
}

// Status returns a snapshot of the task
func (s *Service) Status(id core.TaskID) (TaskStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return TaskStatus{}, core.ErrTaskNotFound
	}
	files := make([]string, len(t.sources))
	for i, src := range t.sources {
		files[i] = src.filename
	}
	status := TaskStatus{
		ID:        t.id.String(),
		State:     t.state,
		Progress:  t.progress,
		Files:     files,
		Error:     t.errMsg,
		CreatedAt: t.createdAt,
	}
	if !t.completedAt.IsZero() {
		done := t.completedAt
		status.CompletedAt = &done
	}
	return status, nil
}

// OutputPath returns the workbook path for a completed task
func (s *Service) OutputPath(id core.TaskID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return "", core.ErrTaskNotFound
	}
	switch t.state {
	case TaskCompleted:
		return t.outputPath, nil
	case TaskFailed:
		return "", fmt.Errorf("%w: %s", core.ErrArtifactFailed, t.errMsg)
	default:
		return "", core.ErrArtifactNotReady
	}
}

func (s *Service) run(t *task) {
	path, err := s.writeWorkbook(t)
	s.mu.Lock()
	defer s.mu.Unlock()
	t.completedAt = time.Now()
	if err != nil {
		t.state = TaskFailed
		t.errMsg = err.Error()
		log.Printf("[Merge] Task %s failed: %v", t.id, err)
		return
	}
	t.state = TaskCompleted
	t.progress = 1.0
	t.outputPath = path
	log.Printf("[Merge] Task %s completed: %s", t.id, path)
}

func (s *Service) writeWorkbook(t *task) (string, error) {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating merge output directory")
	}

	f := excelize.NewFile()
	defer f.Close()

	used := map[string]bool{}
	for i, src := range t.sources {
		name := sheetName(src.filename, i, used)
		if i == 0 {
			f.SetSheetName(f.GetSheetName(0), name)
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return "", errors.Wrap(err, "adding sheet")
			}
		}
		if err := writeSheet(f, name, src.dataset, nil); err != nil {
			return "", err
		}
		s.setProgress(t, float64(i+1)/float64(len(t.sources)+1))
	}

	combined, sourceOf := combine(t.sources)
	if _, err := f.NewSheet("Combined"); err != nil {
		return "", errors.Wrap(err, "adding combined sheet")
	}
	if err := writeSheet(f, "Combined", combined, sourceOf); err != nil {
		return "", err
	}

	path := filepath.Join(s.outputDir, fmt.Sprintf("merge_%s.xlsx", t.id))
	if err := f.SaveAs(path); err != nil {
		return "", errors.Wrap(err, "saving merged workbook")
	}
	return path, nil
}

func (s *Service) setProgress(t *task, p float64) {
	s.mu.Lock()
	t.progress = p
	s.mu.Unlock()
}

// combine stacks every source under the union of their columns, in
// first-seen order. sourceOf[i] names the file row i came from.
func combine(sources []source) (*table.Dataset, []string) {
	var names []string
	seen := map[string]int{}
	for _, src := range sources {
		for _, col := range src.dataset.Columns() {
			if _, ok := seen[col.Name]; !ok {
				seen[col.Name] = len(names)
				names = append(names, col.Name)
			}
		}
	}

	total := 0
	for _, src := range sources {
		total += src.dataset.RowCount()
	}

	cells := make([][]table.Cell, len(names))
	for i := range cells {
		cells[i] = make([]table.Cell, 0, total)
	}
	sourceOf := make([]string, 0, total)

	for _, src := range sources {
		columns := src.dataset.Columns()
		present := map[int]table.Column{}
		for _, col := range columns {
			present[seen[col.Name]] = col
		}
		for r := 0; r < src.dataset.RowCount(); r++ {
			for i := range names {
				if col, ok := present[i]; ok {
					cells[i] = append(cells[i], col.Cells[r])
				} else {
					cells[i] = append(cells[i], table.EmptyCell())
				}
			}
			sourceOf = append(sourceOf, src.filename)
		}
	}

	out := make([]table.Column, len(names))
	for i, name := range names {
		out[i] = table.Column{Name: name, Type: table.TypeString, Cells: cells[i]}
	}
	ds, err := table.NewDataset(out)
	if err != nil {
		// Columns are built to equal length above
		panic(err)
	}
	return ds, sourceOf
}

// writeSheet writes the dataset to the named sheet. When sourceOf is
// non-nil a leading source_file column records row provenance.
func writeSheet(f *excelize.File, sheet string, ds *table.Dataset, sourceOf []string) error {
	offset := 0
	if sourceOf != nil {
		offset = 1
		cell, _ := excelize.CoordinatesToCellName(1, 1)
		if err := f.SetCellValue(sheet, cell, "source_file"); err != nil {
			return errors.Wrap(err, "writing header")
		}
		for r, name := range sourceOf {
			cell, _ := excelize.CoordinatesToCellName(1, r+2)
			if err := f.SetCellValue(sheet, cell, name); err != nil {
				return errors.Wrap(err, "writing source column")
			}
		}
	}

	for ci, col := range ds.Columns() {
		cell, _ := excelize.CoordinatesToCellName(ci+1+offset, 1)
		if err := f.SetCellValue(sheet, cell, col.Name); err != nil {
			return errors.Wrap(err, "writing header")
		}
		for r, c := range col.Cells {
			cell, _ := excelize.CoordinatesToCellName(ci+1+offset, r+2)
			var value interface{}
			switch c.Type {
			case table.TypeNumber:
				value = c.Num
			case table.TypeBool:
				value = c.Bool
			case table.TypeDate:
				value = c.Display()
			default:
				value = c.Str
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return errors.Wrap(err, "writing cell")
			}
		}
	}
	return nil
}

// sheetName derives a valid, unique Excel sheet name from the filename
func sheetName(filename string, index int, used map[string]bool) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	replacer := strings.NewReplacer("[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", "\\", "_")
	base = replacer.Replace(base)
	if base == "" {
		base = fmt.Sprintf("Sheet%d", index+1)
	}
	if len(base) > 28 {
		base = base[:28]
	}
	name := base
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	used[name] = true
	return name
}
