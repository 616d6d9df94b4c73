package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"

	"github.com/alba-synchrotron/beamctl/backup"
	"github.com/alba-synchrotron/beamctl/generichttp"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like, overridden by $BEAMCTL_CONFIG
	ConfigFileName = "beamctl.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	if env := os.Getenv("BEAMCTL_CONFIG"); env != "" {
		ConfigFileName = env
	}
	k.Load(structs.Provider(Config{
		Addr:   ":8000",
		Name:   "beamline",
		Memory: "memory.cfg",
		Motors: []MotorSetup{}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `beamctl serves the motion controllers, pseudomotors, pseudo counters, front
ends and measurement groups of a beamline over HTTP

Usage:
	beamctl <command>

Commands:
	run
	help
	mkconf
	conf
	version
	backup <file>
	restore <file>`
	fmt.Println(str)
}

func help() {
	str := `beamctl is amenable to configuration via its .yaml file, beamctl.yml in the
working directory or the file named by $BEAMCTL_CONFIG.  For a primer on YAML,
see https://yaml.org/start.html

Motors are physical controllers, Type "mock" or "remote".  A remote controller
is another node serving /axis/{axis}/pos; its Axes must be listed.

Pseudos bind a pseudomotor controller to motors.  Motors maps each motor role
to "motor/axis".  Types and their roles, case insensitive:
- slit           Gap, Offset         <- sl2t, sl2b          (sign)
- twoleggedtable pos, rot            <- t1, t2              (dist1, dist2)
- twoxstage      x, yaw              <- mx1, mx2            (Tx1Coordinates, Tx2Coordinates)
- tripod         z, pitch, roll      <- jack1, jack2, jack3 (Jack1..3Coordinates, CenterCoordinates,
                                                             Azimuth, CrossedPMLimitsCheck)
- moveablemask   gap, offset         <- mask1, mask2
- twocoupled     Pseudo              <- master, slave       (tolerance)

Counters bind a pseudo counter to motors through Inputs.  Types:
- mopi           mopi_filter_thickness <- mopi_lon, mopi_filt

FrontEnds are opened and closed through an EPS device, a mock one unless
Addr names another node serving /attr/{attr}.

MeasurementGroups list "counter/role" channels.

No two endpoints can have the same URL.  URLs may look like any variation
between "bl22/slit" or "/bl22/slit/*", the leading and trailing slashes, as
well as the *, are added by the server if missing.

backup and restore talk to a running server at Addr.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("beamctl version %v\n", Version)
}

func loadconf() Config {
	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		log.Fatal(err)
	}
	return c
}

func run() {
	c := loadconf()
	s, err := BuildStation(c, log.Default())
	if err != nil {
		log.Fatal(err)
	}
	mux, err := BuildMux(c, s)
	if err != nil {
		log.Fatal(err)
	}
	log.Println("now listening for requests at ", c.Addr)
	log.Fatal(http.ListenAndServe(c.Addr, mux))
}

func client() *generichttp.Client {
	cl := generichttp.NewClient(0)
	cl.Timeout = time.Minute
	cl.HTTP.Timeout = 30 * time.Second
	return cl
}

func takeBackup(path string) {
	c := loadconf()
	d := &backup.Document{}
	if err := client().Do(http.MethodGet, nodeURL(c.Addr)+"/backup", nil, d); err != nil {
		log.Fatal(err)
	}
	if err := backup.WriteFile(path, d); err != nil {
		log.Fatal(err)
	}
	log.Printf("saved backup of %s version %s in %s", c.Name, d.Version, path)
}

func restore(path string) {
	c := loadconf()
	d, err := backup.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}
	if err = client().Do(http.MethodPost, nodeURL(c.Addr)+"/restore", d, nil); err != nil {
		log.Fatal(err)
	}
	log.Printf("restored %s from the backup of %s", c.Name, d.Date)
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	case "backup", "restore":
		if len(args) < 3 {
			log.Fatalf("usage: beamctl %s <file>", cmd)
		}
		if cmd == "backup" {
			takeBackup(args[2])
		} else {
			restore(args[2])
		}
		return
	default:
		log.Fatal("unknown command")
	}
}
