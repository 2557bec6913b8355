// internal/tui/app.go
//
// This is the terminal dashboard for SmartStock.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: the App below, wrapping the dashboard orchestrator
// 2. Update: key presses and finished requests become orchestrator calls
// 3. View: the orchestrator's State rendered to a string
//
// Every network call is a dashboard.Fetch run as a tea.Cmd. Its Event comes
// back through Update, so the orchestrator is only ever touched from the
// bubbletea goroutine.

package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/smartstock/internal/api"
	"github.com/kingrea/smartstock/internal/config"
	"github.com/kingrea/smartstock/internal/dashboard"
	"github.com/kingrea/smartstock/internal/logbook"
	"github.com/kingrea/smartstock/internal/logging"
	"github.com/kingrea/smartstock/internal/session"
	"github.com/kingrea/smartstock/internal/view"
)

// appState represents which "screen" we're on
type appState int

const (
	stateLogin      appState = iota // user ID + PIN form
	stateDashboard                  // tabbed views
	statePickUpload                 // CSV file picker for an upload
)

const (
	placeholderProduct = "-- Select Product --"
	logPanelLines      = 6
)

// Client is everything the dashboard needs from the backend.
type Client interface {
	dashboard.Backend
	dashboard.Authenticator
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithClient replaces the HTTP client built from configuration.
func WithClient(c Client) AppOption {
	return func(a *App) {
		if c != nil {
			a.client = c
		}
	}
}

// WithContext sets the context every request runs under.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

// eventMsg carries a finished Fetch back into Update. generation is the
// session the Fetch was issued in.
type eventMsg struct {
	generation int
	event      dashboard.Event
}

type productItem string

func (p productItem) Title() string       { return string(p) }
func (p productItem) Description() string { return "" }
func (p productItem) FilterValue() string { return string(p) }

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state  appState
	ctx    context.Context
	config *config.Config

	client   Client
	auth     *dashboard.Auth
	orch     *dashboard.Orchestrator
	orchOpts []dashboard.Option
	trace    *logging.Logger
	logbook  *logbook.Logbook

	userInput  textinput.Model
	pinInput   textinput.Model
	loggingIn  bool
	inventory  table.Model
	products   list.Model
	productSet []string
	search     textinput.Model
	picker     filepicker.Model
	uploadKind dashboard.UploadKind
	spinner    spinner.Model
	spinning   bool
	generation int

	statusMsg string
	width     int
	height    int
}

// NewApp builds the dashboard from configuration. The caller must Close it.
func NewApp(cfg *config.Config, opts ...AppOption) (*App, error) {
	if cfg == nil {
		return nil, errors.New("tui: config is required")
	}
	trace, err := logging.New(cfg.LogsDir(), "http.log")
	if err != nil {
		return nil, fmt.Errorf("tui: open trace log: %w", err)
	}
	book, err := logbook.New(filepath.Join(cfg.LogsDir(), "dashboard.log"))
	if err != nil {
		trace.Close()
		return nil, fmt.Errorf("tui: open logbook: %w", err)
	}
	a := &App{
		ctx:     context.Background(),
		config:  cfg,
		trace:   trace,
		logbook: book,
	}
	for _, opt := range opts {
		opt(a)
	}

	store := session.NewStore(cfg.SessionPath())
	if a.client == nil {
		clientOpts := []api.Option{api.WithTimeout(cfg.RequestTimeout()), api.WithLogger(trace)}
		if cfg.AttachToken() {
			clientOpts = append(clientOpts, api.WithBearerToken(store))
		}
		a.client = api.New(cfg.BaseURL(), clientOpts...)
	}
	a.auth = dashboard.NewAuth(a.client, store, trace)
	a.orchOpts = []dashboard.Option{
		dashboard.WithInitialView(cfg.InitialView()),
		dashboard.WithLogger(trace),
	}
	if cfg.DiscardStaleResponses() {
		a.orchOpts = append(a.orchOpts, dashboard.WithSequenceFencing())
	}

	a.userInput = newInput("User ID")
	a.pinInput = newInput("PIN")
	a.pinInput.EchoMode = textinput.EchoPassword
	a.pinInput.EchoCharacter = '•'
	a.search = newInput("Enter product name")

	a.inventory = table.New(
		table.WithColumns(inventoryColumns()),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	a.inventory.SetStyles(tableStyles())

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	a.products = list.New([]list.Item{productItem(placeholderProduct)}, delegate, 40, 12)
	a.products.Title = "Products"
	a.products.SetShowStatusBar(false)
	a.products.SetShowHelp(false)
	a.products.SetFilteringEnabled(false)
	a.products.DisableQuitKeybindings()

	a.spinner = spinner.New()
	a.spinner.Spinner = spinner.Dot
	a.spinner.Style = lipgloss.NewStyle().Foreground(colorAccent)

	if a.auth.LoggedIn() {
		a.enterDashboard()
	} else {
		a.enterLogin()
	}
	return a, nil
}

func newInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 64
	ti.Width = 30
	ti.Cursor.SetMode(cursor.CursorStatic)
	return ti
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.Foreground(lipgloss.Color("#FFFFFF")).Background(colorAccent)
	return s
}

// Close releases the trace log.
func (a *App) Close() error {
	if a == nil || a.trace == nil {
		return nil
	}
	return a.trace.Close()
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(format, args...)
}

func (a *App) enterLogin() {
	a.state = stateLogin
	a.orch = nil
	a.generation++
	a.loggingIn = false
	a.userInput.Reset()
	a.pinInput.Reset()
	a.pinInput.Blur()
	a.userInput.Focus()
	a.statusMsg = "tab next field · enter sign in · ctrl+c quit"
}

func (a *App) enterDashboard() {
	a.state = stateDashboard
	a.orch = dashboard.New(a.client, a.orchOpts...)
	a.generation++
	a.productSet = nil
	a.inventory.SetRows(nil)
	a.products.SetItems([]list.Item{productItem(placeholderProduct)})
	a.search.Reset()
	a.statusMsg = ""
	a.syncFocus()
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	if a.state == stateDashboard {
		return a.run(a.orch.Start()...)
	}
	return nil
}

// run turns fetches into commands and keeps the spinner going while any of
// them are outstanding.
func (a *App) run(fetches ...dashboard.Fetch) tea.Cmd {
	if len(fetches) == 0 {
		return nil
	}
	ctx, gen := a.ctx, a.generation
	cmds := make([]tea.Cmd, 0, len(fetches)+1)
	for _, f := range fetches {
		f := f
		cmds = append(cmds, func() tea.Msg {
			return eventMsg{generation: gen, event: f(ctx)}
		})
	}
	if !a.spinning {
		a.spinning = true
		cmds = append(cmds, a.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

func (a *App) busy() bool {
	switch a.state {
	case stateLogin:
		return a.loggingIn
	case stateDashboard, statePickUpload:
		if a.orch == nil {
			return false
		}
		st := a.orch.State()
		return st.ViewLoading(st.Active) || st.Loading(dashboard.ResourceUpload)
	}
	return false
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.inventory.SetHeight(max(5, msg.Height-20))
		a.products.SetSize(max(20, msg.Width/3), max(6, msg.Height-20))
		a.picker.Height = max(5, msg.Height-12)
		return a, nil

	case spinner.TickMsg:
		if !a.busy() {
			a.spinning = false
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case eventMsg:
		if msg.generation != a.generation {
			// Issued by a session that has since been logged out.
			return a, nil
		}
		return a, a.handleEvent(msg.event)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.state {
		case stateLogin:
			return a.updateLogin(msg)
		case stateDashboard:
			return a.updateDashboard(msg)
		case statePickUpload:
			return a.updatePicker(msg)
		}
	}

	if a.state == statePickUpload {
		return a.updatePicker(msg)
	}
	return a, nil
}

func (a *App) handleEvent(ev dashboard.Event) tea.Cmd {
	if login, ok := ev.(dashboard.LoginCompleted); ok {
		a.loggingIn = false
		if !a.auth.Apply(login) {
			a.logWarn("login %s: %s", login.UserID, a.auth.Error())
			a.pinInput.Reset()
			return nil
		}
		a.logInfo("login %s succeeded", login.UserID)
		a.enterDashboard()
		return a.run(a.orch.Start()...)
	}
	if a.orch == nil {
		return nil
	}
	follow := a.orch.Apply(ev)
	st := a.orch.State()
	switch e := ev.(type) {
	case dashboard.StockLoaded:
		a.inventory.SetRows(inventoryRows(st.Inventory))
		a.logResult("stock", e.Result)
	case dashboard.AlertsLoaded:
		a.logResult("alerts", e.Result)
	case dashboard.ProductsLoaded:
		a.syncProducts(st.Products)
		a.logResult("products", e.Result)
	case dashboard.ForecastLoaded:
		a.logResult("forecast "+e.Product, e.Result)
	case dashboard.InsightsLoaded:
		a.logResult("insights", e.Result)
	case dashboard.SearchCompleted:
		a.logResult("search "+e.Term, e.Result)
	case dashboard.UploadCompleted:
		if e.Result.OK {
			a.logInfo("upload %s succeeded", e.Kind)
		} else {
			a.logWarn("upload %s failed: %s", e.Kind, uploadError(e.Result))
		}
	}
	return a.run(follow...)
}

func (a *App) logResult(what string, res api.Result) {
	switch {
	case res.Transport:
		a.logError("%s: %s", what, api.TransportFailure)
	case !res.OK:
		a.logWarn("%s: %s", what, res.Error)
	}
}

func uploadError(res api.Result) string {
	if res.Transport {
		return api.TransportFailure
	}
	return res.Error
}

func (a *App) syncProducts(products []string) {
	if slices.Equal(products, a.productSet) {
		return
	}
	a.productSet = slices.Clone(products)
	items := make([]list.Item, 0, len(products)+1)
	items = append(items, productItem(placeholderProduct))
	for _, p := range products {
		items = append(items, productItem(p))
	}
	a.products.SetItems(items)
}

// syncFocus points keyboard input at the component owned by the active view.
func (a *App) syncFocus() {
	if a.orch != nil && a.orch.Active() == view.Search {
		a.search.Focus()
		return
	}
	a.search.Blur()
}

func (a *App) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab", "up", "down":
		a.toggleLoginFocus()
		return a, nil
	case "enter":
		if a.userInput.Focused() {
			a.toggleLoginFocus()
			return a, nil
		}
		if a.loggingIn {
			return a, nil
		}
		a.loggingIn = true
		a.logInfo("login attempt for %s", strings.TrimSpace(a.userInput.Value()))
		fetch := a.auth.Login(a.userInput.Value(), a.pinInput.Value())
		return a, a.run(fetch)
	}
	var cmd tea.Cmd
	if a.userInput.Focused() {
		a.userInput, cmd = a.userInput.Update(msg)
	} else {
		a.pinInput, cmd = a.pinInput.Update(msg)
	}
	return a, cmd
}

func (a *App) toggleLoginFocus() {
	if a.userInput.Focused() {
		a.userInput.Blur()
		a.pinInput.Focus()
		return
	}
	a.pinInput.Blur()
	a.userInput.Focus()
}

func (a *App) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	active := a.orch.Active()

	switch key {
	case "tab":
		return a, a.afterSwitch(a.orch.Next())
	case "shift+tab":
		return a, a.afterSwitch(a.orch.Prev())
	case "ctrl+l":
		return a, a.logout()
	case "esc":
		a.orch.DismissNotification()
		return a, nil
	}

	if active == view.Search {
		if key == "enter" {
			term := a.search.Value()
			a.logInfo("search %q", term)
			return a, a.run(a.orch.Search(term)...)
		}
		var cmd tea.Cmd
		a.search, cmd = a.search.Update(msg)
		return a, cmd
	}

	switch key {
	case "q":
		return a, tea.Quit
	case "1", "2", "3", "4", "5":
		fetches, err := a.orch.Select(view.All[int(key[0]-'1')])
		if err != nil {
			a.logError("select view: %v", err)
			return a, nil
		}
		return a, a.afterSwitch(fetches)
	case "r":
		a.logInfo("refresh %s", active)
		return a, a.run(a.orch.Refresh(active)...)
	}

	switch active {
	case view.Inventory:
		switch key {
		case "u":
			return a, a.beginUpload(dashboard.UploadInventory)
		case "s":
			return a, a.beginUpload(dashboard.UploadSales)
		}
		var cmd tea.Cmd
		a.inventory, cmd = a.inventory.Update(msg)
		return a, cmd
	case view.Forecast:
		if key == "enter" {
			return a, a.selectProduct()
		}
		var cmd tea.Cmd
		a.products, cmd = a.products.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) afterSwitch(fetches []dashboard.Fetch) tea.Cmd {
	a.syncFocus()
	a.statusMsg = ""
	return a.run(fetches...)
}

func (a *App) selectProduct() tea.Cmd {
	name := ""
	if item, ok := a.products.SelectedItem().(productItem); ok && item != placeholderProduct {
		name = string(item)
	}
	fetches, err := a.orch.SelectProduct(name)
	if err != nil {
		a.logError("select product: %v", err)
		return nil
	}
	return a.run(fetches...)
}

func (a *App) logout() tea.Cmd {
	if err := a.auth.Logout(); err != nil {
		a.logError("%v", err)
		a.orch.Notify(dashboard.LevelError, err.Error())
		return nil
	}
	a.logInfo("logged out")
	a.enterLogin()
	return nil
}

func (a *App) beginUpload(kind dashboard.UploadKind) tea.Cmd {
	a.uploadKind = kind
	a.picker = filepicker.New()
	a.picker.AllowedTypes = []string{".csv"}
	a.picker.CurrentDirectory = "."
	a.picker.Height = max(5, a.height-12)
	a.state = statePickUpload
	a.statusMsg = fmt.Sprintf("Choose a CSV file for the %s upload · esc cancel", kind)
	return a.picker.Init()
}

func (a *App) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		a.state = stateDashboard
		a.statusMsg = ""
		return a, nil
	}
	var cmd tea.Cmd
	a.picker, cmd = a.picker.Update(msg)
	if ok, path := a.picker.DidSelectFile(msg); ok {
		return a, a.uploadFile(path)
	}
	if ok, path := a.picker.DidSelectDisabledFile(msg); ok {
		a.statusMsg = fmt.Sprintf("%s is not a CSV file", filepath.Base(path))
	}
	return a, cmd
}

// uploadFile starts the upload for the kind chosen when the picker opened.
func (a *App) uploadFile(path string) tea.Cmd {
	a.state = stateDashboard
	a.statusMsg = ""
	fetch, err := a.orch.Upload(a.uploadKind, path)
	if err != nil {
		a.logError("upload: %v", err)
		a.orch.Notify(dashboard.LevelError, err.Error())
		return nil
	}
	a.logInfo("uploading %s as %s", filepath.Base(path), a.uploadKind)
	a.orch.Notify(dashboard.LevelInfo, fmt.Sprintf("Uploading %s...", filepath.Base(path)))
	return a.run(fetch)
}

// View renders the current state to a string.
func (a *App) View() string {
	switch a.state {
	case stateLogin:
		return a.renderLogin()
	case statePickUpload:
		return a.renderFrame(a.renderPicker())
	}
	return a.renderFrame(a.renderActiveView())
}

func (a *App) contentWidth() int {
	width := a.width
	if width <= 0 {
		width = 100
	}
	return max(40, width-4)
}

func (a *App) renderLogin() string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorBrand).
		MarginBottom(1).
		Render("⬡ SMARTSTOCK · Sign in")
	lines := []string{header, a.userInput.View(), a.pinInput.View()}
	if a.loggingIn {
		lines = append(lines, a.spinner.View()+" Signing in...")
	}
	if msg := a.auth.Error(); msg != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(colorRed).Render(msg))
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(1, 2).
		Render(strings.Join(lines, "\n"))
	footer := lipgloss.NewStyle().
		Foreground(colorMuted).
		MarginTop(1).
		Render(a.statusMsg)
	return strings.Join([]string{box, footer}, "\n")
}

func (a *App) renderActiveView() string {
	st := a.orch.State()
	var body string
	switch st.Active {
	case view.Inventory:
		body = a.inventory.View()
	case view.Alerts:
		body = renderAlerts(st.Alerts)
	case view.Forecast:
		right := lipgloss.NewStyle().Foreground(colorMuted).Render("Select a product to see its forecast.")
		if st.Forecast != nil {
			right = renderForecast(*st.Forecast, a.contentWidth()-a.products.Width()-8)
		}
		body = lipgloss.JoinHorizontal(lipgloss.Top, a.products.View(), "  ", right)
	case view.Insights:
		body = lipgloss.NewStyle().Foreground(colorMuted).Render("No insights loaded.")
		if st.Insights != nil {
			body = renderInsights(*st.Insights)
		}
	case view.Search:
		body = a.search.View()
		if st.SearchResult != nil {
			body += "\n\n" + renderSearchResult(*st.SearchResult)
		}
	}
	if st.ViewLoading(st.Active) {
		body = a.spinner.View() + " Loading...\n\n" + body
	}
	return body
}

func (a *App) renderPicker() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorAccent).
		Render(fmt.Sprintf("Upload %s CSV", a.uploadKind))
	return title + "\n\n" + a.picker.View()
}

func (a *App) renderFrame(content string) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorBrand).
		MarginBottom(1).
		Render("⬡ SMARTSTOCK")
	active := view.Inventory
	var note string
	if a.orch != nil {
		active = a.orch.Active()
		st := a.orch.State()
		note = renderNotification(st.Notification)
		if st.Loading(dashboard.ResourceUpload) {
			note = a.spinner.View() + " " + note
		}
	}
	main := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(a.contentWidth()).
		Render(content)
	sections := []string{header, renderTabs(active), main}
	if note != "" {
		sections = append(sections, note)
	}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	status := a.statusMsg
	if status == "" {
		status = helpFor(active)
	}
	footer := lipgloss.NewStyle().
		Foreground(colorMuted).
		MarginTop(1).
		Render(status)
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorAccent).
		Render(fmt.Sprintf("LOG · %s (%d entries)", filepath.Base(a.logbook.Path()), total))
	body := lipgloss.NewStyle().
		Foreground(colorText).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}
