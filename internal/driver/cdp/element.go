package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/flowrunner/internal/driver"
	"github.com/xkilldash9x/flowrunner/internal/flow"
)

// Element is a lazily resolved locator on a page.
//
// Without a frame reference, CSS selectors are resolved with
// querySelectorAll and every other kind is translated to XPath and resolved
// with a DOM search. With one, the selector is evaluated inside that
// iframe's document only.
type Element struct {
	page *Page
	loc  flow.Locator
}

var _ driver.Element = (*Element)(nil)

// Fill focuses the element, clears it, and types text so input handlers fire.
func (e *Element) Fill(ctx context.Context, text string, timeout time.Duration) error {
	return e.act(ctx, "fill", timeout, func(c context.Context, n *cdp.Node) error {
		return chromedp.Run(c,
			dom.ScrollIntoViewIfNeeded().WithNodeID(n.NodeID),
			dom.Focus().WithNodeID(n.NodeID),
			chromedp.ActionFunc(func(c context.Context) error { return clearValue(c, n) }),
			chromedp.KeyEvent(text),
		)
	})
}

const clearValueFn = `function() {
	if (!('value' in this)) return;
	this.value = '';
	this.dispatchEvent(new Event('input', {bubbles: true}));
}`

// clearValue empties a form control through its value property.
func clearValue(ctx context.Context, n *cdp.Node) error {
	obj, err := dom.ResolveNode().WithNodeID(n.NodeID).Do(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()
	_, exc, err := runtime.CallFunctionOn(clearValueFn).WithObjectID(obj.ObjectID).Do(ctx)
	if err != nil {
		return err
	}
	if exc != nil {
		return fmt.Errorf("clear value: %s", exc.Text)
	}
	return nil
}

// Click scrolls the element into view and clicks its centre.
func (e *Element) Click(ctx context.Context, timeout time.Duration) error {
	return e.act(ctx, "click", timeout, func(c context.Context, n *cdp.Node) error {
		return chromedp.Run(c,
			dom.ScrollIntoViewIfNeeded().WithNodeID(n.NodeID),
			chromedp.MouseClickNode(n),
		)
	})
}

// WaitVisible waits until the element exists and has a rendered box.
func (e *Element) WaitVisible(ctx context.Context, timeout time.Duration) error {
	return e.act(ctx, "wait visible", timeout, func(context.Context, *cdp.Node) error { return nil })
}

// act waits for the located node to be visible, then runs fn on it. Both
// share one bound.
func (e *Element) act(ctx context.Context, op string, timeout time.Duration, fn func(context.Context, *cdp.Node) error) error {
	op = fmt.Sprintf("%s %s", op, e.loc)
	bound := e.page.session.opts.Bound(timeout)

	cctx, cancel := CombineContext(e.page.ctx, ctx)
	defer cancel()
	tctx, tcancel := context.WithTimeout(cctx, bound)
	defer tcancel()

	node, matched, err := e.await(tctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		if !matched {
			return fmt.Errorf("%s: no match within %s: %w", op, bound, driver.ErrNotFound)
		}
		return fmt.Errorf("%s: not visible within %s: %w", op, bound, driver.ErrTimeout)
	}
	return classify(op, fn(tctx, node), ctx)
}

// await polls until the indexed match is visible. matched reports whether
// the index was ever in range.
func (e *Element) await(ctx context.Context) (node *cdp.Node, matched bool, err error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		n, found, qerr := e.resolve(ctx)
		if qerr == nil && found {
			matched = true
			if visible(ctx, n) {
				return n, true, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, matched, ctx.Err()
		case <-ticker.C:
		}
	}
}

// resolve returns the node at the locator's index, reporting whether the
// index is in range.
func (e *Element) resolve(ctx context.Context) (*cdp.Node, bool, error) {
	if e.loc.Frame != "" {
		return e.resolveInFrame(ctx)
	}

	sel := e.loc.Selector
	by := chromedp.BySearch
	if sel.Kind == flow.KindCSS {
		by = chromedp.ByQueryAll
	}
	var nodes []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(sel.Query(), &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, false, err
	}
	if e.loc.Index >= len(nodes) {
		return nil, false, nil
	}
	return nodes[e.loc.Index], true, nil
}

// resolveInFrame evaluates the selector inside the referenced iframe's
// document only. Cross-origin frames expose no document and never match.
func (e *Element) resolveInFrame(ctx context.Context) (node *cdp.Node, found bool, err error) {
	host, err := e.frameHost(ctx)
	if err != nil || host == nil {
		return nil, false, err
	}
	lookup, err := frameLookup(e.loc.Selector)
	if err != nil {
		return nil, false, err
	}

	err = chromedp.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		frame, err := dom.ResolveNode().WithNodeID(host.NodeID).Do(c)
		if err != nil {
			return err
		}
		defer func() { _ = runtime.ReleaseObject(frame.ObjectID).Do(c) }()

		// 1. Count the matches.
		res, exc, err := runtime.CallFunctionOn(fmt.Sprintf(frameCountFn, lookup)).
			WithObjectID(frame.ObjectID).
			WithReturnByValue(true).
			Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("frame query failed: %s", exc.Text)
		}
		var count int
		if err := json.Unmarshal([]byte(res.Value), &count); err != nil {
			return fmt.Errorf("frame query returned %s: %w", res.Value, err)
		}
		if e.loc.Index >= count {
			return nil
		}

		// 2. Push the indexed match to the DOM agent.
		item, exc, err := runtime.CallFunctionOn(fmt.Sprintf(frameItemFn, lookup, e.loc.Index)).
			WithObjectID(frame.ObjectID).
			Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("frame query failed: %s", exc.Text)
		}
		if item.ObjectID == "" {
			return nil
		}
		defer func() { _ = runtime.ReleaseObject(item.ObjectID).Do(c) }()
		id, err := dom.RequestNode(item.ObjectID).Do(c)
		if err != nil {
			return err
		}
		node, found = &cdp.Node{NodeID: id}, true
		return nil
	}))
	return node, found, err
}

// frameCountFn and frameItemFn run with this bound to an iframe element;
// %s is a JS expression yielding the matches in document order.
const (
	frameCountFn = `function() {
	const doc = this.contentDocument;
	if (!doc) return 0;
	return (%s).length;
}`
	frameItemFn = `function() {
	const doc = this.contentDocument;
	if (!doc) return null;
	return (%s)[%d] || null;
}`
)

// frameLookup renders the JS expression that lists a selector's matches in
// doc.
func frameLookup(sel flow.Selector) (string, error) {
	lit, err := json.Marshal(sel.Query())
	if err != nil {
		return "", err
	}
	if sel.Kind == flow.KindCSS {
		return fmt.Sprintf("Array.from(doc.querySelectorAll(%s))", lit), nil
	}
	return fmt.Sprintf(`((r) => Array.from({length: r.snapshotLength}, (_, i) => r.snapshotItem(i)))(doc.evaluate(%s, doc, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null))`, lit), nil
}

// frameHost finds the iframe element named by the locator's frame reference,
// matching its name, id, or a fragment of its src.
func (e *Element) frameHost(ctx context.Context) (*cdp.Node, error) {
	ref := strconv.Quote(e.loc.Frame)
	query := fmt.Sprintf(`iframe[name=%s], iframe[id=%s], iframe[src*=%s]`, ref, ref, ref)
	var hosts []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(query, &hosts, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, nil
	}
	return hosts[0], nil
}

// visible reports whether the node currently renders a non-empty box.
func visible(ctx context.Context, n *cdp.Node) bool {
	var box *dom.BoxModel
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		box, err = dom.GetBoxModel().WithNodeID(n.NodeID).Do(c)
		return err
	}))
	return err == nil && box != nil && box.Width > 0 && box.Height > 0
}
