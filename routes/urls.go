package routes

import (
	"fmt"
	"net/url"

	"github.com/mbolis/newsroom-forms/renderer"
)

// urlBuilder makes absolute links to the admin API below base.
type urlBuilder struct {
	base string
}

func (u urlBuilder) ResponseURL(investigationSlug, formSlug string, responseID int64) string {
	return fmt.Sprintf("%s/api/admin/investigations/%s/forms/%s/responses/%d",
		u.base, url.PathEscape(investigationSlug), url.PathEscape(formSlug), responseID)
}

func (u urlBuilder) FileURL(ref renderer.FileRef) string {
	link := u.ResponseURL(ref.InvestigationSlug, ref.FormSlug, ref.ResponseID) + "/files/" + url.PathEscape(ref.Field)
	if ref.Index != nil {
		link += fmt.Sprintf("/%d", *ref.Index)
	}
	return link
}
