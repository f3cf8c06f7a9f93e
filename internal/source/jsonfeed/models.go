package jsonfeed

// Feed represents a JSON Feed document (https://jsonfeed.org), reduced to
// the fields this syncer consumes.
type Feed struct {
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Item is a raw feed entry. Every field is optional; normalization applies
// the defaulting rules at the ingestion boundary rather than trusting the
// document.
type Item struct {
	ID            string       `json:"id"`
	URL           string       `json:"url"`
	ExternalURL   string       `json:"external_url"`
	Title         string       `json:"title"`
	ContentText   string       `json:"content_text"`
	ContentHTML   string       `json:"content_html"`
	DatePublished string       `json:"date_published"`
	Image         string       `json:"image"`
	BannerImage   string       `json:"banner_image"`
	Attachments   []Attachment `json:"attachments"`
	Authors       []Author     `json:"authors"`
	Author        *Author      `json:"author"`
}

type Attachment struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Title    string `json:"title"`
}

type Author struct {
	Name string `json:"name"`
}
