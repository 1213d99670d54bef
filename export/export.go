// Package export writes the responses of a form as CSV, one column per field of any of
// its versions.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mbolis/newsroom-forms/database"
	"github.com/mbolis/newsroom-forms/log"
	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/renderer"
	"github.com/pkg/errors"
)

const ContentType = "text/csv"

var metaColumns = []string{
	"meta_comments",
	"meta_email",
	"meta_id",
	"meta_status",
	"meta_submission_date",
	"meta_tags",
	"meta_url",
	"meta_version",
}

// URLBuilder makes the absolute links written into the export.
type URLBuilder interface {
	renderer.URLBuilder
	ResponseURL(investigationSlug, formSlug string, responseID int64) string
}

type Options struct {
	Filter          model.ResponseFilter
	IncludeComments bool
}

// Filename is the download name of a form export.
func Filename(investigationSlug, formSlug string) string {
	return fmt.Sprintf("crowdnewsroom_download_%s_%s.csv", investigationSlug, formSlug)
}

type Exporter struct {
	store    *database.Store
	renderer *renderer.Renderer
}

func New(store *database.Store, r *renderer.Renderer) *Exporter {
	return &Exporter{store: store, renderer: r}
}

// Columns is the sorted union of the field names of every version of the form and the
// meta columns.
func Columns(instances []model.FormInstance) ([]string, error) {
	var warnings *multierror.Error
	seen := map[string]bool{}
	for _, c := range metaColumns {
		seen[c] = true
	}
	for _, fi := range instances {
		def, err := fi.Definition()
		if err != nil {
			warnings = multierror.Append(warnings, errors.Wrapf(err, "form version %d", fi.Version))
			continue
		}
		for _, col := range def.JSONProperties() {
			seen[col.Name] = true
		}
	}

	columns := make([]string, 0, len(seen))
	for name := range seen {
		columns = append(columns, name)
	}
	sort.Strings(columns)
	return columns, warnings.ErrorOrNil()
}

// CreateFormCSV writes the form's responses matching opts to w, oldest first. Responses
// that cannot be rendered are left out; the returned warnings say which.
func (e *Exporter) CreateFormCSV(ctx context.Context, form *model.Form, investigationSlug string, urls URLBuilder, w io.Writer, opts Options) (warnings error, err error) {
	var merr *multierror.Error

	instances, err := e.store.Instances(ctx, form.ID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*model.FormInstance, len(instances))
	for i := range instances {
		byID[instances[i].ID] = &instances[i]
	}

	columns, colWarnings := Columns(instances)
	if colWarnings != nil {
		merr = multierror.Append(merr, colWarnings)
	}

	responses, skipped, err := e.store.Responses(ctx, form.ID, opts.Filter)
	if err != nil {
		return nil, err
	}
	merr = multierror.Append(merr, skipped...)
	sort.Slice(responses, func(i, j int) bool { return responses[i].ID < responses[j].ID })

	out := csv.NewWriter(w)
	if err = out.Write(columns); err != nil {
		return nil, errors.Wrap(err, "export.header")
	}

	for i := range responses {
		r := &responses[i]
		r.FormInstance = byID[r.FormInstanceID]

		row, err := e.row(ctx, r, form, investigationSlug, urls, opts)
		if err != nil {
			var warning *model.IntegrityWarning
			if !errors.As(err, &warning) {
				return nil, err
			}
			merr = multierror.Append(merr, warning)
			continue
		}

		record := make([]string, len(columns))
		for j, col := range columns {
			record[j] = row[col]
		}
		if err = out.Write(record); err != nil {
			return nil, errors.Wrap(err, "export.row")
		}
	}

	out.Flush()
	if err = out.Error(); err != nil {
		return nil, errors.Wrap(err, "export.flush")
	}

	if warnings = merr.ErrorOrNil(); warnings != nil {
		log.WithFields(log.Fields{"form": form.ID, "skipped": len(merr.Errors)}).Warn(warnings)
	}
	return warnings, nil
}

func (e *Exporter) row(ctx context.Context, r *model.FormResponse, form *model.Form, investigationSlug string, urls URLBuilder, opts Options) (map[string]string, error) {
	fields, err := e.renderer.Fields(renderer.Source{
		Response:          r,
		InvestigationSlug: investigationSlug,
		FormSlug:          form.Slug,
	}, urls)
	if err != nil {
		return nil, err
	}

	row := make(map[string]string, len(fields)+len(metaColumns))
	for _, f := range fields {
		row[f.JSONName] = f.Value
	}

	row["meta_id"] = strconv.FormatInt(r.ID, 10)
	row["meta_status"] = r.Status.Label()
	row["meta_submission_date"] = r.SubmissionDate.UTC().Format(time.RFC3339)
	row["meta_url"] = urls.ResponseURL(investigationSlug, form.Slug, r.ID)
	row["meta_version"] = strconv.Itoa(r.FormInstance.Version)
	row["meta_email"] = r.Email()
	row["meta_tags"] = TagList(r.Tags)

	if opts.IncludeComments {
		comments, err := e.store.Comments(ctx, r.ID, false)
		if err != nil {
			return nil, err
		}
		row["meta_comments"] = CommentList(comments)
	}
	return row, nil
}

// TagList joins tag names with commas; commas inside names become spaces.
func TagList(tags []model.Tag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = strings.ReplaceAll(t.Name, ",", " ")
	}
	return strings.Join(names, ",")
}

func CommentList(comments []model.Comment) string {
	lines := make([]string, 0, len(comments))
	for _, c := range comments {
		if c.Archived {
			continue
		}
		author := ""
		if c.Author != nil {
			author = c.Author.DisplayName()
		}
		lines = append(lines, fmt.Sprintf("%s (%s): %s", author, c.Date.UTC().Format(time.RFC3339), c.Text))
	}
	return strings.Join(lines, "\n")
}
