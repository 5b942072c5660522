package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/alitto/pond"
	"github.com/urfave/cli/v2"

	fmask "github.com/ossgeo/go-fmask"
	"github.com/ossgeo/go-fmask/memio"
	"github.com/ossgeo/go-fmask/rasterio"
)

// sceneURIs is the set of input/output array locations a single
// classify invocation needs, all rooted under a scene's TileDB group.
type sceneURIs struct {
	group    string
	bands    [6]string
	thermal  string
	pixelOut string
	confOut  string
	summary  string
}

func resolveSceneURIs(groupURI string) sceneURIs {
	names := [6]string{"BLUE", "GREEN", "RED", "NIR", "SWIR1", "SWIR2"}
	var u sceneURIs
	u.group = groupURI
	for i, n := range names {
		u.bands[i] = filepath.Join(groupURI, n+".tiledb")
	}
	u.thermal = filepath.Join(groupURI, "THERM.tiledb")
	u.pixelOut = filepath.Join(groupURI, "pixel_mask.tiledb")
	u.confOut = filepath.Join(groupURI, "conf_mask.tiledb")
	u.summary = filepath.Join(groupURI, "summary.json")
	return u
}

// classifyScene runs the full six-pass classifier over a single scene
// rooted at groupURI, writing pixel_mask, conf_mask, and a summary
// sidecar back into the group. When inMemory is set, the scene's bands
// are read fully into RAM and handed to the engine via memio.Reader
// instead of streaming rows from TileDB on every pass, trading peak
// memory for fewer small TileDB queries on scenes small enough to fit.
func classifyScene(ctx *tiledb.Context, groupURI string, cloudProbThreshold float64, verbose, inMemory bool) error {
	u := resolveSceneURIs(groupURI)

	desc, err := readSceneDescriptor(ctx, u)
	if err != nil {
		return errors.Join(err, errors.New("reading scene descriptor: "+groupURI))
	}

	tdbReader, err := rasterio.OpenReader(ctx, desc, u.bands, u.thermal)
	if err != nil {
		return errors.Join(err, errors.New("opening scene for read: "+groupURI))
	}
	defer tdbReader.Close()

	var reader fmask.RowReader = tdbReader
	if inMemory {
		mr, err := loadInMemory(tdbReader)
		if err != nil {
			return errors.Join(err, errors.New("loading scene into memory: "+groupURI))
		}
		tdbReader.Close()
		reader = mr
	}

	if err := rasterio.CreateMaskArray(ctx, u.pixelOut, desc.Rows, desc.Cols); err != nil {
		return errors.Join(err, errors.New("creating pixel_mask array"))
	}
	if err := rasterio.CreateMaskArray(ctx, u.confOut, desc.Rows, desc.Cols); err != nil {
		return errors.Join(err, errors.New("creating conf_mask array"))
	}

	n := desc.Size()
	pixelMask := make([]uint8, n)
	confMask := make([]uint8, n)

	var logger *log.Logger
	if verbose {
		logger = log.Default()
	}

	log.Println("Classifying scene:", groupURI)
	summary, err := fmask.RunSummary(reader, pixelMask, confMask, cloudProbThreshold, verbose, logger)
	if err != nil {
		return errors.Join(err, errors.New("classifying scene: "+groupURI))
	}

	writer, err := rasterio.OpenWriter(ctx, desc, u.pixelOut, u.confOut)
	if err != nil {
		return errors.Join(err, errors.New("opening scene for write: "+groupURI))
	}
	defer writer.Close()

	if err := writer.WriteAll(pixelMask, confMask); err != nil {
		return errors.Join(err, errors.New("writing masks: "+groupURI))
	}

	grp, err := tiledb.NewGroup(ctx, groupURI)
	if err != nil {
		return errors.Join(err, errors.New("opening tiledb group: "+groupURI))
	}
	defer grp.Free()

	if err := grp.Open(tiledb.TILEDB_WRITE); err != nil {
		return errors.Join(err, errors.New("opening tiledb group in write mode: "+groupURI))
	}
	defer grp.Close()

	if err := rasterio.WriteGroupSummary(grp, summary); err != nil {
		return errors.Join(err, errors.New("writing group summary metadata"))
	}
	if err := rasterio.WriteSummarySidecar(u.summary, summary); err != nil {
		return errors.Join(err, errors.New("writing summary sidecar"))
	}

	log.Println("Finished scene:", groupURI)
	return nil
}

// descriptorFile is the on-disk shape of a scene's saturation metadata,
// read from <group>/descriptor.json alongside the band arrays.
type descriptorFile struct {
	Rows       int                     `json:"rows"`
	Cols       int                     `json:"cols"`
	Saturation [6]fmask.SaturationPair `json:"saturation"`
	ThermSat   fmask.SaturationPair    `json:"therm_saturation"`
}

func readSceneDescriptor(ctx *tiledb.Context, u sceneURIs) (fmask.ImageDescriptor, error) {
	path := filepath.Join(u.group, "descriptor.json")
	b, err := os.ReadFile(path)
	if err != nil {
		return fmask.ImageDescriptor{}, err
	}

	var df descriptorFile
	if err := json.Unmarshal(b, &df); err != nil {
		return fmask.ImageDescriptor{}, err
	}

	return fmask.ImageDescriptor{
		Rows:            df.Rows,
		Cols:            df.Cols,
		Saturation:      df.Saturation,
		ThermSaturation: df.ThermSat,
	}, nil
}

// loadInMemory drains every band and the thermal channel of r (via its
// row-read contract) into full planes and wraps them in a memio.Reader,
// so the engine's six passes re-read rows from RAM instead of issuing a
// fresh TileDB query per row per pass.
func loadInMemory(r fmask.RowReader) (*memio.Reader, error) {
	desc := r.Descriptor()
	s := desc.Cols

	var bands [6][]int16
	for b := range bands {
		plane := make([]int16, desc.Size())
		row := make([]int16, s)
		for i := 0; i < desc.Rows; i++ {
			if err := r.GetInputLine(fmask.BandIndex(b), i, row); err != nil {
				return nil, err
			}
			copy(plane[i*s:(i+1)*s], row)
		}
		bands[b] = plane
	}

	thermal := make([]int16, desc.Size())
	row := make([]int16, s)
	for i := 0; i < desc.Rows; i++ {
		if err := r.GetInputThermLine(i, row); err != nil {
			return nil, err
		}
		copy(thermal[i*s:(i+1)*s], row)
	}

	return memio.NewReader(desc, bands, thermal)
}

// classifyTrawl walks a directory of scene groups and classifies each
// with a bounded pond pool, mirroring the teacher's convert_gsf_list.
func classifyTrawl(rootURI, configURI string, cloudProbThreshold float64, verbose, inMemory bool, workers int) error {
	entries, err := os.ReadDir(rootURI)
	if err != nil {
		return err
	}

	var groups []string
	for _, e := range entries {
		if e.IsDir() && filepath.Ext(e.Name()) == ".tiledb" {
			groups = append(groups, filepath.Join(rootURI, e.Name()))
		}
	}
	log.Println("Number of scenes to process:", len(groups))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	pool := pond.New(workers, 0, pond.MinWorkers(workers), pond.Context(ctx))
	defer pool.StopAndWait()

	for _, name := range groups {
		groupURI := name
		pool.Submit(func() {
			tdbCtx, cfgErr := newTileDBContext(configURI)
			if cfgErr != nil {
				log.Println("error:", groupURI, cfgErr)
				return
			}
			defer tdbCtx.Free()

			if err := classifyScene(tdbCtx, groupURI, cloudProbThreshold, verbose, inMemory); err != nil {
				log.Println("error:", groupURI, err)
			}
		})
	}

	return nil
}

func newTileDBContext(configURI string) (*tiledb.Context, error) {
	var (
		config *tiledb.Config
		err    error
	)

	if configURI == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(configURI)
	}
	if err != nil {
		return nil, err
	}
	defer config.Free()

	return tiledb.NewContext(config)
}

func main() {
	app := &cli.App{
		Commands: []*cli.Command{
			{
				Name:  "classify",
				Usage: "classify a single scene rooted at --group-uri",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "group-uri", Usage: "URI or pathname to the scene's TileDB group."},
					&cli.StringFlag{Name: "config-uri", Usage: "URI or pathname to a TileDB config file."},
					&cli.Float64Flag{Name: "cloud-prob-threshold", Value: 22.5, Usage: "Base cloud probability threshold percentile offset."},
					&cli.BoolFlag{Name: "verbose", Usage: "Log one line per classification pass."},
					&cli.BoolFlag{Name: "in-memory", Usage: "Load the scene's bands fully into RAM before classifying, instead of streaming each row from TileDB on every pass."},
				},
				Action: func(cCtx *cli.Context) error {
					tdbCtx, err := newTileDBContext(cCtx.String("config-uri"))
					if err != nil {
						return err
					}
					defer tdbCtx.Free()

					return classifyScene(tdbCtx, cCtx.String("group-uri"), cCtx.Float64("cloud-prob-threshold"), cCtx.Bool("verbose"), cCtx.Bool("in-memory"))
				},
			},
			{
				Name:  "classify-trawl",
				Usage: "classify every scene group found under --uri",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "uri", Usage: "URI or pathname to a directory containing scene groups."},
					&cli.StringFlag{Name: "config-uri", Usage: "URI or pathname to a TileDB config file."},
					&cli.Float64Flag{Name: "cloud-prob-threshold", Value: 22.5, Usage: "Base cloud probability threshold percentile offset."},
					&cli.BoolFlag{Name: "verbose", Usage: "Log one line per classification pass."},
					&cli.BoolFlag{Name: "in-memory", Usage: "Load each scene's bands fully into RAM before classifying."},
					&cli.IntFlag{Name: "workers", Usage: "Pond pool size; defaults to 2*NumCPU."},
				},
				Action: func(cCtx *cli.Context) error {
					return classifyTrawl(cCtx.String("uri"), cCtx.String("config-uri"), cCtx.Float64("cloud-prob-threshold"), cCtx.Bool("verbose"), cCtx.Bool("in-memory"), cCtx.Int("workers"))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
