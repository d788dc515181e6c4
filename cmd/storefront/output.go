package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"gopkg.in/yaml.v3"

	"github.com/xenking/storefront/internal/domain/product"
)

type format string

const (
	formatTable format = "table"
	formatJSON  format = "json"
	formatYAML  format = "yaml"
)

func parseFormat(s string) (format, error) {
	switch f := format(strings.ToLower(s)); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	default:
		return "", errors.Errorf("unknown output format %q: want table, json or yaml", s)
	}
}

type ratingRecord struct {
	Rate  string `yaml:"rate"`
	Count int    `yaml:"count"`
}

// productRecord is the printable form of a product. Prices are kept as
// decimal strings.
type productRecord struct {
	ID          string        `yaml:"id"`
	Title       string        `yaml:"title"`
	Price       string        `yaml:"price"`
	Category    string        `yaml:"category"`
	Description string        `yaml:"description,omitempty"`
	Image       string        `yaml:"image,omitempty"`
	Rating      *ratingRecord `yaml:"rating,omitempty"`
}

func newProductRecord(p product.Product) productRecord {
	r := productRecord{
		ID:          p.ID,
		Title:       p.Title,
		Price:       p.Price.String(),
		Category:    p.Category,
		Description: p.Description,
		Image:       p.Image,
	}
	if p.Rating != nil {
		r.Rating = &ratingRecord{Rate: p.Rating.Rate.String(), Count: p.Rating.Count}
	}
	return r
}

func (r productRecord) encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(r.ID) })
		e.Field("title", func(e *jx.Encoder) { e.Str(r.Title) })
		e.Field("price", func(e *jx.Encoder) { e.Num(jx.Num(r.Price)) })
		e.Field("category", func(e *jx.Encoder) { e.Str(r.Category) })
		e.Field("description", func(e *jx.Encoder) { e.Str(r.Description) })
		e.Field("image", func(e *jx.Encoder) { e.Str(r.Image) })
		if r.Rating != nil {
			e.Field("rating", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("rate", func(e *jx.Encoder) { e.Num(jx.Num(r.Rating.Rate)) })
					e.Field("count", func(e *jx.Encoder) { e.Int(r.Rating.Count) })
				})
			})
		}
	})
}

// result is something a command prints in the selected format.
type result interface {
	write(w io.Writer, f format) error
}

type productsResult []product.Product

func (r productsResult) write(w io.Writer, f format) error {
	records := make([]productRecord, len(r))
	for i, p := range r {
		records[i] = newProductRecord(p)
	}

	switch f {
	case formatJSON:
		return writeJSON(w, func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, rec := range records {
					rec.encode(e)
				}
			})
		})
	case formatYAML:
		return writeYAML(w, records)
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tPRICE\tCATEGORY\tTITLE")
		for _, rec := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.ID, rec.Price, rec.Category, rec.Title)
		}
		return tw.Flush()
	}
}

type productResult product.Product

func (r productResult) write(w io.Writer, f format) error {
	rec := newProductRecord(product.Product(r))
	switch f {
	case formatJSON:
		return writeJSON(w, rec.encode)
	case formatYAML:
		return writeYAML(w, rec)
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "ID:\t%s\n", rec.ID)
		fmt.Fprintf(tw, "Title:\t%s\n", rec.Title)
		fmt.Fprintf(tw, "Price:\t%s\n", rec.Price)
		fmt.Fprintf(tw, "Category:\t%s\n", rec.Category)
		if rec.Rating != nil {
			fmt.Fprintf(tw, "Rating:\t%s (%d reviews)\n", rec.Rating.Rate, rec.Rating.Count)
		}
		if rec.Description != "" {
			fmt.Fprintf(tw, "Description:\t%s\n", rec.Description)
		}
		return tw.Flush()
	}
}

type categoriesResult []string

func (r categoriesResult) write(w io.Writer, f format) error {
	switch f {
	case formatJSON:
		return writeJSON(w, func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, c := range r {
					e.Str(c)
				}
			})
		})
	case formatYAML:
		return writeYAML(w, []string(r))
	default:
		for _, c := range r {
			if _, err := fmt.Fprintln(w, c); err != nil {
				return err
			}
		}
		return nil
	}
}

func writeJSON(w io.Writer, fn func(e *jx.Encoder)) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)
	if _, err := w.Write(e.Bytes()); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encode yaml")
	}
	return enc.Close()
}
