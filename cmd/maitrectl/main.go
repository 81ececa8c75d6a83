package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maitre-io/maitre/internal/activity"
	"github.com/maitre-io/maitre/internal/config"
	"github.com/maitre-io/maitre/internal/restaurant"
	"github.com/maitre-io/maitre/internal/scheduler"
	"github.com/maitre-io/maitre/pkg/protocol"
)

var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(0)
	}

	c := newClient(envOr("MAITRE_URL", "http://localhost:8080"), os.Getenv("MAITRE_API_KEY"))
	if err := run(c, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage(format string, args ...any) error {
	return fmt.Errorf("%w: maitrectl "+format, append([]any{errUsage}, args...)...)
}

func run(c *client, args []string, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	sub := ""
	if len(rest) > 0 {
		sub = rest[0]
	}

	switch cmd {
	case "health":
		body, err := c.get("/api/health")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, strings.TrimSpace(string(body)))
	case "status":
		return cmdStatus(c, out)
	case "waiters":
		switch sub {
		case "list":
			return cmdWaitersList(c, out)
		case "add":
			if len(rest) < 2 {
				return usage("waiters add <name>")
			}
			return cmdWaitersAdd(c, out, strings.Join(rest[1:], " "))
		case "show":
			if len(rest) < 2 {
				return usage("waiters show <id>")
			}
			return cmdShow(c, out, "/api/waiters/", rest[1])
		default:
			return usage("waiters <list|add|show>")
		}
	case "queue":
		switch sub {
		case "list":
			return cmdQueueList(c, out)
		case "add":
			return cmdQueueAdd(c, out, rest[1:])
		case "reorder":
			if _, err := c.post("/api/queue/reorder", nil); err != nil {
				return err
			}
			return cmdQueueList(c, out)
		default:
			return usage("queue <list|add|reorder>")
		}
	case "dispatch":
		path := "/api/dispatch"
		if sub != "" {
			if _, err := strconv.Atoi(sub); err != nil {
				return usage("dispatch [<waiter-id>]")
			}
			path = "/api/waiters/" + sub + "/dispatch"
		}
		return cmdDispatch(c, out, path)
	case "finish":
		if sub == "" {
			return usage("finish <order-id>")
		}
		return cmdFinish(c, out, sub)
	case "order":
		switch sub {
		case "show":
			if len(rest) < 2 {
				return usage("order show <id>")
			}
			return cmdShow(c, out, "/api/orders/", rest[1])
		case "add":
			return cmdOrderAdd(c, out, rest[1:])
		case "remove":
			if len(rest) < 3 {
				return usage("order remove <id> <line>")
			}
			return cmdOrderRemove(c, out, rest[1], rest[2])
		default:
			return usage("order <show|add|remove>")
		}
	case "menu":
		switch sub {
		case "list":
			return cmdMenuList(c, out)
		case "add":
			return cmdMenuAdd(c, out, rest[1:])
		case "remove":
			if len(rest) < 2 {
				return usage("menu remove <name>")
			}
			if _, err := c.delete("/api/menu/" + url.PathEscape(strings.Join(rest[1:], " "))); err != nil {
				return err
			}
			fmt.Fprintf(out, "removed %s\n", strings.Join(rest[1:], " "))
		default:
			return usage("menu <list|add|remove>")
		}
	case "shift":
		switch sub {
		case "start":
			if len(rest) < 2 {
				return usage("shift start <morning|afternoon|night>")
			}
			body, err := c.post("/api/shift", map[string]string{"shift": rest[1]})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, prettyJSON(body))
		case "end":
			if _, err := c.delete("/api/shift"); err != nil {
				return err
			}
			fmt.Fprintln(out, "shift ended")
		case "schedule":
			return cmdShiftSchedule(c, out)
		default:
			return usage("shift <start|end|schedule>")
		}
	case "history":
		return cmdHistory(c, out)
	case "logs":
		return cmdLogs(c, out, rest)
	case "config":
		if sub != "validate" || len(rest) < 2 {
			return usage("config validate <path>")
		}
		if _, err := config.Load(rest[1]); err != nil {
			return fmt.Errorf("invalid: %w", err)
		}
		fmt.Fprintln(out, "config is valid")
	case "help", "-h", "--help":
		printUsage(out)
	default:
		printUsage(os.Stderr)
		return usage("unknown command %q", cmd)
	}
	return nil
}

func cmdStatus(c *client, out io.Writer) error {
	var st restaurant.Status
	if err := c.getJSON("/api/status", &st); err != nil {
		return err
	}
	shift := st.Shift.String()
	if st.Shift == protocol.ShiftNone {
		shift = "closed"
	}
	fmt.Fprintf(out, "%s  shift=%s  waiting=%d  finished=%d\n", st.Name, shift, st.Waiting, st.Finished)
	for _, w := range st.Waiters {
		fmt.Fprintf(out, "  %-6d %-24s individuals=%d groups=%d\n", w.ID, w.Name, w.Individuals, w.Groups)
	}
	return nil
}

func cmdWaitersList(c *client, out io.Writer) error {
	var waiters []protocol.WaiterRecord
	if err := c.getJSON("/api/waiters", &waiters); err != nil {
		return err
	}
	for _, w := range waiters {
		fmt.Fprintf(out, "%-6d %-24s %d individual, %d group attendances\n",
			w.ID, w.Name, len(w.Individuals), len(w.Groups))
	}
	return nil
}

func cmdWaitersAdd(c *client, out io.Writer, name string) error {
	body, err := c.post("/api/waiters", map[string]string{"name": name})
	if err != nil {
		return err
	}
	var w protocol.WaiterRecord
	if err := json.Unmarshal(body, &w); err != nil {
		return err
	}
	fmt.Fprintf(out, "hired waiter %d %s\n", w.ID, w.Name)
	return nil
}

func cmdShow(c *client, out io.Writer, prefix, id string) error {
	if _, err := strconv.Atoi(id); err != nil {
		return fmt.Errorf("invalid id %q", id)
	}
	body, err := c.get(prefix + id)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, prettyJSON(body))
	return nil
}

func cmdQueueList(c *client, out io.Writer) error {
	var parties []*protocol.Party
	if err := c.getJSON("/api/queue", &parties); err != nil {
		return err
	}
	if len(parties) == 0 {
		fmt.Fprintln(out, "queue is empty")
		return nil
	}
	for _, p := range parties {
		name := p.Name
		if p.IsGroup() {
			name = fmt.Sprintf("%s (%d)", p.Name, len(p.Members))
		}
		fmt.Fprintf(out, "%-6d %-10s %-8s %-28s %s\n",
			p.ID, p.Kind, p.Class(), name, p.ArrivedAt.Local().Format(time.Kitchen))
	}
	return nil
}

func cmdQueueAdd(c *client, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("queue add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	priority := fs.Bool("priority", false, "Priority service")
	notes := fs.String("notes", "", "General observations")
	prefs := fs.String("prefs", "", "Comma separated preferences")
	members := fs.String("members", "", "Comma separated member names; makes a group")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return usage("queue add [-priority] [-notes text] [-prefs a,b] [-members a,b] <name>")
	}

	arrival := restaurant.Arrival{Guest: restaurant.Guest{
		Name:        strings.Join(fs.Args(), " "),
		Notes:       *notes,
		Preferences: splitList(*prefs),
	}}
	if *priority {
		arrival.Priority = protocol.PriorityHigh
	}
	for _, m := range splitList(*members) {
		arrival.Members = append(arrival.Members, restaurant.Guest{Name: m})
	}

	body, err := c.post("/api/queue", arrival)
	if err != nil {
		return err
	}
	var p protocol.Party
	if err := json.Unmarshal(body, &p); err != nil {
		return err
	}
	fmt.Fprintf(out, "queued %s %d %s\n", p.Kind, p.ID, p.Name)
	return nil
}

func cmdDispatch(c *client, out io.Writer, path string) error {
	body, err := c.post(path, nil)
	if err != nil {
		return err
	}
	var res restaurant.DispatchResult
	if err := json.Unmarshal(body, &res); err != nil {
		return err
	}
	switch res.Outcome {
	case restaurant.OutcomeDispatched:
		fmt.Fprintf(out, "%s seated with waiter %d, order #%d\n", res.Party.Name, res.WaiterID, res.OrderID)
	case restaurant.OutcomeAtCapacity:
		if res.Party != nil {
			fmt.Fprintf(out, "no room for %s, kept at the head of the queue\n", res.Party.Name)
		} else {
			fmt.Fprintln(out, "no room, kept at the head of the queue")
		}
	case restaurant.OutcomeQueueEmpty:
		fmt.Fprintln(out, "queue is empty")
	default:
		fmt.Fprintln(out, res.Outcome)
	}
	return nil
}

func cmdFinish(c *client, out io.Writer, id string) error {
	if _, err := strconv.Atoi(id); err != nil {
		return fmt.Errorf("invalid order id %q", id)
	}
	body, err := c.post("/api/orders/"+id+"/finish", nil)
	if err != nil {
		return err
	}
	var rec protocol.AttendanceRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return err
	}
	total := 0.0
	if rec.Order != nil {
		total = rec.Order.Total()
	}
	fmt.Fprintf(out, "order #%s finished, total %.2f, service %s\n", id, total, rec.Service.Round(time.Second))
	return nil
}

func cmdOrderAdd(c *client, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("order add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	notes := fs.String("notes", "", "Note for the kitchen")
	if err := fs.Parse(args); err != nil || fs.NArg() < 2 {
		return usage("order add [-notes text] <id> <item> [qty]")
	}
	id, item, qty := fs.Arg(0), fs.Arg(1), 1
	if _, err := strconv.Atoi(id); err != nil {
		return fmt.Errorf("invalid order id %q", id)
	}
	if fs.NArg() > 2 {
		n, err := strconv.Atoi(fs.Arg(2))
		if err != nil {
			return fmt.Errorf("invalid quantity %q", fs.Arg(2))
		}
		qty = n
	}

	body, err := c.post("/api/orders/"+id+"/items", map[string]any{
		"name":     item,
		"quantity": qty,
		"notes":    *notes,
	})
	if err != nil {
		return err
	}
	var order protocol.Order
	if err := json.Unmarshal(body, &order); err != nil {
		return err
	}
	fmt.Fprintf(out, "order #%d: %d items, total %.2f\n", order.ID, len(order.Items), order.Total())
	return nil
}

func cmdOrderRemove(c *client, out io.Writer, id, line string) error {
	if _, err := strconv.Atoi(id); err != nil {
		return fmt.Errorf("invalid order id %q", id)
	}
	if _, err := strconv.Atoi(line); err != nil {
		return fmt.Errorf("invalid line %q", line)
	}
	body, err := c.delete("/api/orders/" + id + "/items/" + line)
	if err != nil {
		return err
	}
	var order protocol.Order
	if err := json.Unmarshal(body, &order); err != nil {
		return err
	}
	fmt.Fprintf(out, "order #%d: %d items, total %.2f\n", order.ID, len(order.Items), order.Total())
	return nil
}

func cmdMenuList(c *client, out io.Writer) error {
	var items []protocol.MenuItem
	if err := c.getJSON("/api/menu", &items); err != nil {
		return err
	}
	for _, it := range items {
		fmt.Fprintf(out, "%-32s %8.2f  %s\n", it.Name, it.Price, it.Description)
	}
	return nil
}

func cmdMenuAdd(c *client, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("menu add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	desc := fs.String("desc", "", "Description")
	if err := fs.Parse(args); err != nil || fs.NArg() < 2 {
		return usage("menu add [-desc text] <name> <price>")
	}
	rest := fs.Args()
	price, err := strconv.ParseFloat(rest[len(rest)-1], 64)
	if err != nil {
		return fmt.Errorf("invalid price %q", rest[len(rest)-1])
	}

	body, err := c.post("/api/menu", protocol.MenuItem{
		Name:        strings.Join(rest[:len(rest)-1], " "),
		Price:       price,
		Description: *desc,
	})
	if err != nil {
		return err
	}
	var it protocol.MenuItem
	if err := json.Unmarshal(body, &it); err != nil {
		return err
	}
	fmt.Fprintf(out, "added %s at %.2f\n", it.Name, it.Price)
	return nil
}

func cmdShiftSchedule(c *client, out io.Writer) error {
	var jobs []scheduler.Job
	if err := c.getJSON("/api/shift/schedule", &jobs); err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "no scheduled shifts")
		return nil
	}
	for _, j := range jobs {
		action := "open " + j.Shift.String()
		if j.Shift == protocol.ShiftNone {
			action = "close"
		}
		next := "-"
		if !j.Next.IsZero() {
			next = j.Next.Local().Format(time.DateTime)
		}
		fmt.Fprintf(out, "%-16s %-16s next %s\n", j.Spec, action, next)
	}
	return nil
}

func cmdHistory(c *client, out io.Writer) error {
	var history []protocol.AttendanceRecord
	if err := c.getJSON("/api/history", &history); err != nil {
		return err
	}
	for _, rec := range history {
		orderID, total := 0, 0.0
		if rec.Order != nil {
			orderID, total = rec.Order.ID, rec.Order.Total()
		}
		name := ""
		if rec.Party != nil {
			name = rec.Party.Name
		}
		fmt.Fprintf(out, "#%-5d %-28s %8.2f  wait %-8s service %s\n",
			orderID, name, total, rec.Wait.Round(time.Second), rec.Service.Round(time.Second))
	}
	return nil
}

func cmdLogs(c *client, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	level := fs.String("level", "", "Minimum level (debug|info|warn|error)")
	limit := fs.Int("limit", 50, "Max entries")
	waiter := fs.String("waiter", "", "Only entries about this waiter id")
	if err := fs.Parse(args); err != nil {
		return usage("logs [-level lvl] [-limit n] [-waiter id]")
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(*limit))
	if *level != "" {
		q.Set("level", *level)
	}
	if *waiter != "" {
		q.Set("waiter", *waiter)
	}
	var entries []activity.Entry
	if err := c.getJSON("/api/logs?"+q.Encode(), &entries); err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s %-5s %s", e.Time.Local().Format(time.TimeOnly), e.Level, e.Message)
		for k, v := range e.Attrs {
			fmt.Fprintf(out, " %s=%v", k, v)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "maitrectl - restaurant floor CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  health                       Check daemon health")
	fmt.Fprintln(w, "  status                       Shift, queue and waiter load")
	fmt.Fprintln(w, "  waiters list                 List waiters")
	fmt.Fprintln(w, "  waiters add <name>           Hire a waiter")
	fmt.Fprintln(w, "  waiters show <id>            Show a waiter and its attendances")
	fmt.Fprintln(w, "  queue list                   Show the waiting queue")
	fmt.Fprintln(w, "  queue add <name>             Queue a party (-priority, -notes, -prefs, -members)")
	fmt.Fprintln(w, "  queue reorder                Sort the queue priority first")
	fmt.Fprintln(w, "  dispatch [<waiter-id>]       Seat the head of the queue")
	fmt.Fprintln(w, "  order show <id>              Show an order")
	fmt.Fprintln(w, "  order add <id> <item> [qty]  Add a menu item to an order (-notes)")
	fmt.Fprintln(w, "  order remove <id> <line>     Remove a line from an open order (lines count from 0)")
	fmt.Fprintln(w, "  menu list                    Show the menu")
	fmt.Fprintln(w, "  menu add <name> <price>      List a menu item (-desc)")
	fmt.Fprintln(w, "  menu remove <name>           Delist a menu item")
	fmt.Fprintln(w, "  finish <order-id>            Finish an attendance")
	fmt.Fprintln(w, "  shift start <shift>|end      Open or close a shift")
	fmt.Fprintln(w, "  shift schedule               Scheduled shift changes")
	fmt.Fprintln(w, "  history                      Finished attendances")
	fmt.Fprintln(w, "  logs                         Recent activity (-level, -limit, -waiter)")
	fmt.Fprintln(w, "  config validate <path>       Validate config file")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  MAITRE_URL       Daemon URL (default: http://localhost:8080)")
	fmt.Fprintln(w, "  MAITRE_API_KEY   API key for authentication")
}
